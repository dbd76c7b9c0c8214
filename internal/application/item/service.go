package item

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thrifthaven-api/internal/domain"
	"github.com/thrifthaven-api/internal/pkg/id"
	"github.com/thrifthaven-api/internal/pkg/pricing"
)

// Item attribute names used in partial update maps.
const (
	fieldName         = "name"
	fieldDescription  = "description"
	fieldPurchaseDate = "purchase_date"
	fieldCategoryIDs  = "category_ids"
	fieldImageFileID  = "image_file_id"
	fieldVideoFileID  = "video_file_id"
)

// Service drives the item lifecycle: submitted -> offered -> approved
// (plus the sold flag), with declines removing the row. Every transition
// writes its notification(s) in the same storage transaction as the item
// mutation, and owner-only transitions check the caller against item.UserID
// here rather than at the route level.
type Service interface {
	Create(ctx context.Context, ownerID string, req domain.CreateItemRequest) (*domain.Item, error)
	List(ctx context.Context, callerID string, isAdmin bool) ([]domain.Item, error)
	ListPending(ctx context.Context) ([]domain.Item, error)
	Get(ctx context.Context, itemID, callerID string, isAdmin bool) (*domain.Item, error)
	Update(ctx context.Context, itemID, callerID string, req domain.UpdateItemRequest) (*domain.Item, error)
	Approve(ctx context.Context, itemID string) (string, error)
	Decline(ctx context.Context, itemID string) error
	AcceptOffer(ctx context.Context, itemID, callerID string) (*domain.Item, error)
	DeclineOffer(ctx context.Context, itemID, callerID string) error
	MarkSold(ctx context.Context, itemID, callerID string) error
}

type itemStore interface {
	CreateWithNotifications(ctx context.Context, it *domain.Item, ns []domain.Notification) error
	Get(ctx context.Context, itemID string) (*domain.Item, error)
	Scan(ctx context.Context, approvedOnly bool) ([]domain.Item, error)
	ScanPending(ctx context.Context) ([]domain.Item, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Item, error)
	Update(ctx context.Context, itemID string, updates map[string]interface{}) error
	SetOffer(ctx context.Context, itemID, offerPrice string, n *domain.Notification) error
	Approve(ctx context.Context, itemID string, n *domain.Notification) error
	MarkSold(ctx context.Context, itemID string, n *domain.Notification) error
	DeleteDeclined(ctx context.Context, itemID string, n *domain.Notification) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	ListByRole(ctx context.Context, role string) ([]domain.User, error)
}

type categoryStore interface {
	Get(ctx context.Context, categoryID string) (*domain.Category, error)
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	repo       itemStore
	userRepo   userStore
	categories categoryStore
	mailer     mailer
	sms        smsSender
}

type ServiceDeps struct {
	ItemRepo     itemStore
	UserRepo     userStore
	CategoryRepo categoryStore
	Mailer       mailer
	SMSSender    smsSender
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:       deps.ItemRepo,
		userRepo:   deps.UserRepo,
		categories: deps.CategoryRepo,
		mailer:     deps.Mailer,
		sms:        deps.SMSSender,
	}
}

func (s *service) Create(ctx context.Context, ownerID string, req domain.CreateItemRequest) (*domain.Item, error) {
	listPrice, err := decimal.NewFromString(req.ListPrice)
	if err != nil || listPrice.IsNegative() {
		return nil, fmt.Errorf("list_price must be a non-negative decimal: %w", domain.ErrBadRequest)
	}
	var purchaseDate *time.Time
	if req.PurchaseDate != nil {
		t, err := time.Parse("2006-01-02", *req.PurchaseDate)
		if err != nil {
			return nil, fmt.Errorf("purchase_date must be in YYYY-MM-DD format: %w", domain.ErrBadRequest)
		}
		purchaseDate = &t
	}
	for _, cid := range req.CategoryIDs {
		if _, err := s.categories.Get(ctx, cid); err != nil {
			return nil, fmt.Errorf("unknown category %s: %w", cid, domain.ErrBadRequest)
		}
	}

	now := time.Now().UTC()
	it := &domain.Item{
		ItemID:       id.New(),
		Name:         req.Name,
		Description:  req.Description,
		ListPrice:    listPrice.StringFixed(2),
		PurchaseDate: purchaseDate,
		CategoryIDs:  req.CategoryIDs,
		ImageFileID:  req.ImageFileID,
		VideoFileID:  req.VideoFileID,
		UserID:       ownerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Every admin gets an INFO notification about the new submission,
	// inserted in the same transaction as the item row.
	admins, err := s.userRepo.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	ns := make([]domain.Notification, 0, len(admins))
	for _, admin := range admins {
		ns = append(ns, domain.Notification{
			NotificationID: id.New(),
			UserID:         admin.UserID,
			ItemID:         &it.ItemID,
			Type:           domain.NotificationInfo,
			Message:        fmt.Sprintf("New item submitted: '%s'", it.Name),
			CreatedAt:      now,
		})
	}
	if err := s.repo.CreateWithNotifications(ctx, it, ns); err != nil {
		return nil, err
	}
	return it, nil
}

// List returns approved listings plus the caller's own items in any state;
// admins see everything.
func (s *service) List(ctx context.Context, callerID string, isAdmin bool) ([]domain.Item, error) {
	if isAdmin {
		return s.repo.Scan(ctx, false)
	}
	approved, err := s.repo.Scan(ctx, true)
	if err != nil {
		return nil, err
	}
	own, err := s.repo.ListByUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(approved))
	items := make([]domain.Item, 0, len(approved)+len(own))
	for _, it := range approved {
		seen[it.ItemID] = true
		items = append(items, it)
	}
	for _, it := range own {
		if !seen[it.ItemID] {
			items = append(items, it)
		}
	}
	return items, nil
}

func (s *service) ListPending(ctx context.Context) ([]domain.Item, error) {
	return s.repo.ScanPending(ctx)
}

func (s *service) Get(ctx context.Context, itemID, callerID string, isAdmin bool) (*domain.Item, error) {
	it, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !it.Approved && it.UserID != callerID && !isAdmin {
		return nil, fmt.Errorf("item not found: %w", domain.ErrNotFound)
	}
	return it, nil
}

func (s *service) Update(ctx context.Context, itemID, callerID string, req domain.UpdateItemRequest) (*domain.Item, error) {
	it, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.UserID != callerID {
		return nil, fmt.Errorf("not the item owner: %w", domain.ErrForbidden)
	}
	if it.OfferPrice != nil {
		return nil, fmt.Errorf("item already has an offer and can no longer be edited: %w", domain.ErrConflict)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates[fieldName] = *req.Name
	}
	if req.Description != nil {
		updates[fieldDescription] = *req.Description
	}
	if req.PurchaseDate != nil {
		t, err := time.Parse("2006-01-02", *req.PurchaseDate)
		if err != nil {
			return nil, fmt.Errorf("purchase_date must be in YYYY-MM-DD format: %w", domain.ErrBadRequest)
		}
		updates[fieldPurchaseDate] = t
	}
	if req.CategoryIDs != nil {
		for _, cid := range *req.CategoryIDs {
			if _, err := s.categories.Get(ctx, cid); err != nil {
				return nil, fmt.Errorf("unknown category %s: %w", cid, domain.ErrBadRequest)
			}
		}
		updates[fieldCategoryIDs] = *req.CategoryIDs
	}
	if req.ImageFileID != nil {
		updates[fieldImageFileID] = *req.ImageFileID
	}
	if req.VideoFileID != nil {
		updates[fieldVideoFileID] = *req.VideoFileID
	}
	if len(updates) == 0 {
		return it, nil
	}
	if err := s.repo.Update(ctx, itemID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, itemID)
}

// Approve computes the depreciation-adjusted offer and stores it together
// with the OFFER notification. The repo re-checks the no-offer guard inside
// the transaction, so a racing second approval surfaces as ErrConflict.
func (s *service) Approve(ctx context.Context, itemID string) (string, error) {
	it, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return "", err
	}
	if it.OfferPrice != nil {
		return "", fmt.Errorf("offer already sent: %w", domain.ErrConflict)
	}
	listPrice, err := decimal.NewFromString(it.ListPrice)
	if err != nil {
		return "", fmt.Errorf("stored list_price is not a decimal: %w", err)
	}
	offer := pricing.ComputeOfferPrice(listPrice, it.PurchaseDate, time.Now().UTC()).StringFixed(2)

	n := &domain.Notification{
		NotificationID: id.New(),
		UserID:         it.UserID,
		ItemID:         &it.ItemID,
		Type:           domain.NotificationOffer,
		OfferPrice:     &offer,
		Message:        fmt.Sprintf("We made an offer for '%s': $%s. Accept or decline.", it.Name, offer),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.SetOffer(ctx, itemID, offer, n); err != nil {
		return "", err
	}
	s.alertOwner(ctx, it.UserID, fmt.Sprintf("ThriftHaven offer for '%s'", it.Name), n.Message)
	return offer, nil
}

// Decline removes the item and notifies the former owner. The notification
// carries no item reference since the row is gone.
func (s *service) Decline(ctx context.Context, itemID string) error {
	it, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if it.Approved {
		return fmt.Errorf("approved listings cannot be declined: %w", domain.ErrConflict)
	}
	n := &domain.Notification{
		NotificationID: id.New(),
		UserID:         it.UserID,
		Type:           domain.NotificationDeclined,
		Message:        fmt.Sprintf("Your item '%s' was declined and removed.", it.Name),
		CreatedAt:      time.Now().UTC(),
	}
	return s.repo.DeleteDeclined(ctx, itemID, n)
}

func (s *service) AcceptOffer(ctx context.Context, itemID, callerID string) (*domain.Item, error) {
	it, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.UserID != callerID {
		return nil, fmt.Errorf("not the item owner: %w", domain.ErrForbidden)
	}
	if it.OfferPrice == nil {
		return nil, fmt.Errorf("no offer to accept: %w", domain.ErrConflict)
	}
	n := &domain.Notification{
		NotificationID: id.New(),
		UserID:         it.UserID,
		ItemID:         &it.ItemID,
		Type:           domain.NotificationApproved,
		Message:        fmt.Sprintf("Your item '%s' is now live at $%s.", it.Name, *it.OfferPrice),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Approve(ctx, itemID, n); err != nil {
		return nil, err
	}
	it.Approved = true
	return it, nil
}

func (s *service) DeclineOffer(ctx context.Context, itemID, callerID string) error {
	it, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if it.UserID != callerID {
		return fmt.Errorf("not the item owner: %w", domain.ErrForbidden)
	}
	if it.OfferPrice == nil {
		return fmt.Errorf("no offer to decline: %w", domain.ErrConflict)
	}
	n := &domain.Notification{
		NotificationID: id.New(),
		UserID:         it.UserID,
		Type:           domain.NotificationDeclined,
		Message:        fmt.Sprintf("You declined the offer for '%s'. The item was removed.", it.Name),
		CreatedAt:      time.Now().UTC(),
	}
	return s.repo.DeleteDeclined(ctx, itemID, n)
}

func (s *service) MarkSold(ctx context.Context, itemID, callerID string) error {
	it, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if it.UserID != callerID {
		return fmt.Errorf("not the item owner: %w", domain.ErrForbidden)
	}
	if !it.Approved {
		return fmt.Errorf("only approved listings can be marked sold: %w", domain.ErrConflict)
	}
	n := &domain.Notification{
		NotificationID: id.New(),
		UserID:         it.UserID,
		ItemID:         &it.ItemID,
		Type:           domain.NotificationSold,
		Message:        fmt.Sprintf("'%s' marked as sold.", it.Name),
		CreatedAt:      time.Now().UTC(),
	}
	return s.repo.MarkSold(ctx, itemID, n)
}

// alertOwner sends the best-effort email/SMS copies of an offer. Failures
// are logged and never fail the transition.
func (s *service) alertOwner(ctx context.Context, userID, subject, message string) {
	owner, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		slog.Warn("could not load owner for alert", "user_id", userID, "err", err)
		return
	}
	if s.mailer != nil {
		if err := s.mailer.SendEmail(owner.Email, subject, message); err != nil {
			slog.Warn("offer email failed", "user_id", userID, "err", err)
		}
	}
	if s.sms != nil && owner.Phone != "" {
		if err := s.sms.SendSMS(ctx, "+1"+owner.Phone, message); err != nil {
			slog.Warn("offer sms failed", "user_id", userID, "err", err)
		}
	}
}
