package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/labreport/internal/model"
	"github.com/jwalitptl/labreport/internal/repository"
)

type draftRepository struct {
	cache *cache.Cache
}

// NewDraftRepository keeps drafts in process memory. Every write restarts
// the draft's ttl; drafts nobody touches for ttl are dropped.
func NewDraftRepository(ttl, cleanupInterval time.Duration) repository.DraftRepository {
	return &draftRepository{cache: cache.New(ttl, cleanupInterval)}
}

func (r *draftRepository) Create(ctx context.Context, draft *model.Draft) error {
	return r.cache.Add(draft.ID.String(), draft.Clone(), cache.DefaultExpiration)
}

func (r *draftRepository) Get(ctx context.Context, id uuid.UUID) (*model.Draft, error) {
	v, ok := r.cache.Get(id.String())
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v.(*model.Draft).Clone(), nil
}

func (r *draftRepository) Update(ctx context.Context, draft *model.Draft) error {
	if err := r.cache.Replace(draft.ID.String(), draft.Clone(), cache.DefaultExpiration); err != nil {
		return repository.ErrNotFound
	}
	return nil
}

func (r *draftRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.cache.Get(id.String()); !ok {
		return repository.ErrNotFound
	}
	r.cache.Delete(id.String())
	return nil
}

// Count reports live drafts. Expired drafts awaiting cleanup are not counted.
func (r *draftRepository) Count() int {
	return len(r.cache.Items())
}
