package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"turfhub/pkg/domain"
	"turfhub/pkg/store"
	"turfhub/pkg/venue"
)

// ListHubs returns the listing for the caller. Owners see only their own
// venues. A failed read degrades to an empty list.
func (a *App) ListHubs(ctx context.Context, p Principal) []domain.Hub {
	hubs, err := a.store.ListHubs(ctx)
	if err != nil {
		slog.Error("list hubs failed", "err", err)
		return []domain.Hub{}
	}
	return store.VisibleHubs(hubs, p.Identity)
}

// MyHubs lists the owner's venues.
func (a *App) MyHubs(ctx context.Context, p Principal) ([]domain.Hub, error) {
	if !p.Identity.IsOwner() {
		return nil, ErrForbidden
	}
	hubs, err := a.store.ListHubsByOwner(ctx, p.User.ID)
	if err != nil {
		slog.Error("list owner hubs failed", "owner_id", p.User.ID, "err", err)
		return []domain.Hub{}, nil
	}
	if hubs == nil {
		hubs = []domain.Hub{}
	}
	return hubs, nil
}

// GetHub returns one venue.
func (a *App) GetHub(ctx context.Context, id string) (domain.Hub, error) {
	hub, ok, err := a.store.GetHub(ctx, id)
	if err != nil {
		return domain.Hub{}, fmt.Errorf("fetch hub: %w", err)
	}
	if !ok {
		return domain.Hub{}, ErrHubNotFound
	}
	return hub, nil
}

// SaveHub creates or updates a venue from the editor form. Updates are
// last-write-wins and keep the creation time and rating.
func (a *App) SaveHub(ctx context.Context, p Principal, form venue.Form) (domain.Hub, error) {
	if !p.Identity.IsOwner() {
		return domain.Hub{}, ErrForbidden
	}
	hub, err := venue.Build(form, p.User.ID)
	if err != nil {
		return domain.Hub{}, err
	}
	now := a.now().UTC()
	hub.UpdatedAt = now
	if !form.IsEdit() {
		hub.CreatedAt = now
		if err := a.store.InsertHub(ctx, hub); err != nil {
			return domain.Hub{}, fmt.Errorf("insert hub: %w", err)
		}
		return hub, nil
	}
	existing, err := a.ownedHub(ctx, p, hub.ID)
	if err != nil {
		return domain.Hub{}, err
	}
	hub.CreatedAt = existing.CreatedAt
	hub.Rating = existing.Rating
	if err := a.store.UpdateHub(ctx, hub); err != nil {
		return domain.Hub{}, fmt.Errorf("update hub: %w", err)
	}
	return hub, nil
}

// AddHubImage uploads an image and appends its URL to the venue gallery.
func (a *App) AddHubImage(ctx context.Context, p Principal, hubID string, r io.Reader, size int64, contentType string) (domain.Hub, error) {
	if a.images == nil {
		return domain.Hub{}, ErrImagesDisabled
	}
	if !p.Identity.IsOwner() {
		return domain.Hub{}, ErrForbidden
	}
	hub, err := a.ownedHub(ctx, p, hubID)
	if err != nil {
		return domain.Hub{}, err
	}
	url, err := a.images.PutImage(ctx, hub.ID, r, size, contentType)
	if err != nil {
		return domain.Hub{}, fmt.Errorf("upload image: %w", err)
	}
	hub.Images = append(hub.Images, url)
	hub.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateHub(ctx, hub); err != nil {
		return domain.Hub{}, fmt.Errorf("update hub: %w", err)
	}
	return hub, nil
}

func (a *App) ownedHub(ctx context.Context, p Principal, hubID string) (domain.Hub, error) {
	hub, err := a.GetHub(ctx, hubID)
	if err != nil {
		return domain.Hub{}, err
	}
	if hub.OwnerID != p.User.ID {
		return domain.Hub{}, ErrForbidden
	}
	return hub, nil
}
