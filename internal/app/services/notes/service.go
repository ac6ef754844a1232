package notes

import (
	"context"
	"sort"
	"strings"

	"github.com/R3E-Network/souschef/internal/app/domain/note"
	"github.com/R3E-Network/souschef/internal/app/services/common"
	"github.com/R3E-Network/souschef/internal/app/storage"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/logging"
)

// Input carries the editable note fields.
type Input struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Pinned bool   `json:"pinned"`
}

// Service manages notes.
type Service struct {
	store storage.NoteStore
	log   *logging.Logger
}

// New constructs a note service.
func New(store storage.NoteStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("notes")
	}
	return &Service{store: store, log: log}
}

func (in Input) apply(n *note.Note) error {
	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)
	if title == "" && body == "" {
		return svcerrors.InvalidInput("title or body is required")
	}
	n.Title = title
	n.Body = body
	n.Pinned = in.Pinned
	return nil
}

func (s *Service) Create(ctx context.Context, owner string, in Input) (note.Note, error) {
	if owner == "" {
		return note.Note{}, svcerrors.Unauthorized("")
	}
	n := note.Note{OwnerID: owner}
	if err := in.apply(&n); err != nil {
		return note.Note{}, err
	}
	created, err := s.store.CreateNote(ctx, n)
	return created, common.StoreError(err, "note", n.ID)
}

func (s *Service) Get(ctx context.Context, owner, id string) (note.Note, error) {
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return note.Note{}, common.StoreError(err, "note", id)
	}
	if err := common.Owned(owner, n.OwnerID, "note", id); err != nil {
		return note.Note{}, err
	}
	return n, nil
}

func (s *Service) Update(ctx context.Context, owner, id string, in Input) (note.Note, error) {
	n, err := s.Get(ctx, owner, id)
	if err != nil {
		return note.Note{}, err
	}
	if err := in.apply(&n); err != nil {
		return note.Note{}, err
	}
	updated, err := s.store.UpdateNote(ctx, n)
	return updated, common.StoreError(err, "note", id)
}

// List returns pinned notes first, then the rest; newest first within each
// group.
func (s *Service) List(ctx context.Context, owner string) ([]note.Note, error) {
	items, err := s.store.ListNotes(ctx, owner)
	if err != nil {
		return nil, common.StoreError(err, "note", "")
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Pinned != items[j].Pinned {
			return items[i].Pinned
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	return common.StoreError(s.store.DeleteNote(ctx, id), "note", id)
}
