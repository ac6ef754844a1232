package httpapi

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/R3E-Network/souschef/internal/app/domain/account"
	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/note"
	"github.com/R3E-Network/souschef/internal/app/domain/product"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/app/domain/shopping"
	"github.com/R3E-Network/souschef/internal/app/services/recipes"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/watch"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/httputil"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

// liveMessage is one frame of the live stream: the full current contents of
// a collection, sent on subscribe and after every change.
type liveMessage struct {
	Collection string      `json:"collection"`
	Items      interface{} `json:"items"`
	Error      string      `json:"error,omitempty"`
	At         time.Time   `json:"at"`
}

type liveSource func(h *handler, ctx context.Context, owner string, out chan<- liveMessage)

var liveSources = map[string]liveSource{
	storage.CollectionAccounts: func(h *handler, ctx context.Context, owner string, out chan<- liveMessage) {
		stream(ctx, h.app.Hub, owner, storage.CollectionAccounts, func(ctx context.Context) ([]account.Account, error) {
			acct, err := h.app.Accounts.Get(ctx, owner)
			if err != nil {
				return nil, err
			}
			return []account.Account{acct}, nil
		}, out)
	},
	storage.CollectionRecipes: func(h *handler, ctx context.Context, owner string, out chan<- liveMessage) {
		stream(ctx, h.app.Hub, owner, storage.CollectionRecipes, func(ctx context.Context) ([]recipe.Recipe, error) {
			return h.app.Recipes.List(ctx, owner, recipes.Filter{})
		}, out)
	},
	storage.CollectionIngredients: func(h *handler, ctx context.Context, owner string, out chan<- liveMessage) {
		stream(ctx, h.app.Hub, owner, storage.CollectionIngredients, func(ctx context.Context) ([]recipe.Ingredient, error) {
			return h.app.Store.ListOwnerIngredients(ctx, owner)
		}, out)
	},
	storage.CollectionLogs: func(h *handler, ctx context.Context, owner string, out chan<- liveMessage) {
		stream(ctx, h.app.Hub, owner, storage.CollectionLogs, func(ctx context.Context) ([]logbook.Log, error) {
			return h.app.Logs.List(ctx, owner)
		}, out)
	},
	storage.CollectionNotes: func(h *handler, ctx context.Context, owner string, out chan<- liveMessage) {
		stream(ctx, h.app.Hub, owner, storage.CollectionNotes, func(ctx context.Context) ([]note.Note, error) {
			return h.app.Notes.List(ctx, owner)
		}, out)
	},
	storage.CollectionProducts: func(h *handler, ctx context.Context, owner string, out chan<- liveMessage) {
		stream(ctx, h.app.Hub, owner, storage.CollectionProducts, func(ctx context.Context) ([]product.Product, error) {
			return h.app.Products.List(ctx, owner)
		}, out)
	},
	storage.CollectionShopping: func(h *handler, ctx context.Context, owner string, out chan<- liveMessage) {
		stream(ctx, h.app.Hub, owner, storage.CollectionShopping, func(ctx context.Context) ([]shopping.Item, error) {
			return h.app.Shopping.List(ctx, owner)
		}, out)
	},
	storage.CollectionReceipts: func(h *handler, ctx context.Context, owner string, out chan<- liveMessage) {
		stream(ctx, h.app.Hub, owner, storage.CollectionReceipts, func(ctx context.Context) ([]receipt.Receipt, error) {
			return h.app.Budget.List(ctx, owner, "")
		}, out)
	},
}

func stream[T any](ctx context.Context, hub *watch.Hub, owner, collection string, fetch func(context.Context) ([]T, error), out chan<- liveMessage) {
	for snap := range watch.Query[T](ctx, hub, owner, collection, fetch) {
		msg := liveMessage{Collection: snap.Collection, Items: snap.Items, At: time.Now().UTC()}
		if snap.Err != nil {
			msg.Items = []T{}
			msg.Error = errorText(snap.Err)
		} else if snap.Items == nil {
			msg.Items = []T{}
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func errorText(err error) string {
	if se := svcerrors.GetServiceError(err); se != nil {
		return se.Message
	}
	return "internal error"
}

func liveCollectionNames(r *http.Request) ([]string, error) {
	names := queryList(r, "collections")
	if len(names) == 0 {
		for name := range liveSources {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(name)
		if _, ok := liveSources[name]; !ok {
			return nil, svcerrors.InvalidFormat("collections", "unknown collection "+name)
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// handleLive upgrades to a websocket and streams snapshots of the requested
// collections until the client goes away or the server stops.
func (h *handler) handleLive(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	names, err := liveCollectionNames(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Debug("live upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if h.app.Listener != nil {
		release, err := h.app.Listener.Watch(ctx, userID)
		if err != nil {
			h.log.WithContext(ctx).WithError(err).Warn("remote change feed unavailable")
		} else {
			defer release()
		}
	}

	out := make(chan liveMessage)
	for _, name := range names {
		go liveSources[name](h, ctx, userID, out)
	}

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	h.log.WithContext(ctx).WithField("collections", names).Debug("live stream opened")
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(liveWriteWait))
			return
		case msg := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}
