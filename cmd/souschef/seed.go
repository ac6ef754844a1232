package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	app "github.com/R3E-Network/souschef/internal/app"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/app/services/accounts"
	"github.com/R3E-Network/souschef/internal/app/services/budget"
	"github.com/R3E-Network/souschef/internal/app/services/ingredients"
	"github.com/R3E-Network/souschef/internal/app/services/logs"
	"github.com/R3E-Network/souschef/internal/app/services/notes"
	"github.com/R3E-Network/souschef/internal/app/services/products"
	"github.com/R3E-Network/souschef/internal/app/services/recipes"
)

// seedFile is the demo data layout. Amounts are strings so that they keep
// their exact decimal value.
type seedFile struct {
	Account struct {
		Email         string `yaml:"email"`
		Password      string `yaml:"password"`
		DisplayName   string `yaml:"display_name"`
		Currency      string `yaml:"currency"`
		MonthlyBudget string `yaml:"monthly_budget"`
	} `yaml:"account"`
	Recipes []struct {
		Name         string   `yaml:"name"`
		Description  string   `yaml:"description"`
		Servings     int      `yaml:"servings"`
		Tags         []string `yaml:"tags"`
		Instructions []string `yaml:"instructions"`
		Ingredients  []struct {
			Name     string `yaml:"name"`
			Quantity string `yaml:"quantity"`
			Unit     string `yaml:"unit"`
		} `yaml:"ingredients"`
	} `yaml:"recipes"`
	Products []struct {
		Name  string `yaml:"name"`
		Store string `yaml:"store"`
		Price string `yaml:"price"`
	} `yaml:"products"`
	Logs []struct {
		Date     string   `yaml:"date"`
		Recipes  []string `yaml:"recipes"`
		Products []string `yaml:"products"`
		Rating   int      `yaml:"rating"`
		Note     string   `yaml:"note"`
	} `yaml:"logs"`
	Notes []struct {
		Title  string `yaml:"title"`
		Body   string `yaml:"body"`
		Pinned bool   `yaml:"pinned"`
	} `yaml:"notes"`
	Receipts []struct {
		Store       string `yaml:"store"`
		PurchasedOn string `yaml:"purchased_on"`
		Total       string `yaml:"total"`
		Lines       []struct {
			Description string `yaml:"description"`
			Amount      string `yaml:"amount"`
		} `yaml:"lines"`
	} `yaml:"receipts"`
}

// seedResult counts what was written.
type seedResult struct {
	AccountID string
	Recipes   int
	Products  int
	Logs      int
	Notes     int
	Receipts  int
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load demo data from a YAML file into a new account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readSeedFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			application, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer application.Stop(context.Background())

			res, err := seed(ctx, application, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded account %s: %d recipes, %d products, %d logs, %d notes, %d receipts\n",
				res.AccountID, res.Recipes, res.Products, res.Logs, res.Notes, res.Receipts)
			return nil
		},
	}
}

func readSeedFile(path string) (seedFile, error) {
	var data seedFile
	raw, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("read seed file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return data, nil
}

func amount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q is not a number", field, raw)
	}
	return d, nil
}

// seed writes data through the services so that every validation rule
// applies. Logs refer to recipes and products by name.
func seed(ctx context.Context, application *app.Application, data seedFile) (seedResult, error) {
	var res seedResult
	acct, err := application.Accounts.SignUp(ctx, data.Account.Email, data.Account.Password, data.Account.DisplayName)
	if err != nil {
		return res, fmt.Errorf("create account: %w", err)
	}
	owner := acct.ID
	res.AccountID = owner

	profile := accounts.Profile{}
	if c := strings.TrimSpace(data.Account.Currency); c != "" {
		profile.Currency = &c
	}
	if data.Account.MonthlyBudget != "" {
		b, err := amount("monthly_budget", data.Account.MonthlyBudget)
		if err != nil {
			return res, err
		}
		profile.MonthlyBudget = &b
	}
	if profile.Currency != nil || profile.MonthlyBudget != nil {
		if _, err := application.Accounts.UpdateProfile(ctx, owner, profile); err != nil {
			return res, fmt.Errorf("update profile: %w", err)
		}
	}

	recipeIDs := make(map[string]string, len(data.Recipes))
	for _, r := range data.Recipes {
		created, err := application.Recipes.Create(ctx, owner, recipes.Input{
			Name:         r.Name,
			Description:  r.Description,
			Servings:     r.Servings,
			Tags:         r.Tags,
			Instructions: r.Instructions,
		})
		if err != nil {
			return res, fmt.Errorf("recipe %q: %w", r.Name, err)
		}
		for _, ing := range r.Ingredients {
			qty, err := amount("quantity", ing.Quantity)
			if err != nil {
				return res, fmt.Errorf("recipe %q: %w", r.Name, err)
			}
			if _, err := application.Ingredients.Add(ctx, owner, created.ID, ingredients.Input{Name: ing.Name, Quantity: qty, Unit: ing.Unit}); err != nil {
				return res, fmt.Errorf("recipe %q ingredient %q: %w", r.Name, ing.Name, err)
			}
		}
		recipeIDs[strings.ToLower(r.Name)] = created.ID
		res.Recipes++
	}

	productIDs := make(map[string]string, len(data.Products))
	for _, p := range data.Products {
		price, err := amount("price", p.Price)
		if err != nil {
			return res, fmt.Errorf("product %q: %w", p.Name, err)
		}
		created, err := application.Products.Create(ctx, owner, products.Input{Name: p.Name, Store: p.Store, Price: price})
		if err != nil {
			return res, fmt.Errorf("product %q: %w", p.Name, err)
		}
		productIDs[strings.ToLower(p.Name)] = created.ID
		res.Products++
	}

	for _, l := range data.Logs {
		entry := logs.Entry{Rating: l.Rating, Note: l.Note}
		for _, name := range l.Recipes {
			id, ok := recipeIDs[strings.ToLower(name)]
			if !ok {
				return res, fmt.Errorf("log %s: unknown recipe %q", l.Date, name)
			}
			entry.RecipeIDs = append(entry.RecipeIDs, id)
		}
		for _, name := range l.Products {
			id, ok := productIDs[strings.ToLower(name)]
			if !ok {
				return res, fmt.Errorf("log %s: unknown product %q", l.Date, name)
			}
			entry.ProductIDs = append(entry.ProductIDs, id)
		}
		if _, err := application.Logs.Save(ctx, owner, l.Date, entry); err != nil {
			return res, fmt.Errorf("log %s: %w", l.Date, err)
		}
		res.Logs++
	}

	for _, n := range data.Notes {
		if _, err := application.Notes.Create(ctx, owner, notes.Input{Title: n.Title, Body: n.Body, Pinned: n.Pinned}); err != nil {
			return res, fmt.Errorf("note %q: %w", n.Title, err)
		}
		res.Notes++
	}

	for _, r := range data.Receipts {
		total, err := amount("total", r.Total)
		if err != nil {
			return res, fmt.Errorf("receipt %s: %w", r.Store, err)
		}
		in := budget.Input{Store: r.Store, PurchasedOn: r.PurchasedOn, Total: total}
		for _, line := range r.Lines {
			amt, err := amount("amount", line.Amount)
			if err != nil {
				return res, fmt.Errorf("receipt %s: %w", r.Store, err)
			}
			in.Lines = append(in.Lines, receipt.Line{Description: line.Description, Amount: amt})
		}
		if _, err := application.Budget.Create(ctx, owner, in); err != nil {
			return res, fmt.Errorf("receipt %s: %w", r.Store, err)
		}
		res.Receipts++
	}
	return res, nil
}
