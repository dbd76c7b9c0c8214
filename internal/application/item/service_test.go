package item

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thrifthaven-api/internal/domain"
)

// --- mocks ---

type mockItemStore struct{ mock.Mock }

func (m *mockItemStore) CreateWithNotifications(ctx context.Context, it *domain.Item, ns []domain.Notification) error {
	return m.Called(ctx, it, ns).Error(0)
}
func (m *mockItemStore) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	args := m.Called(ctx, itemID)
	if it, _ := args.Get(0).(*domain.Item); it != nil {
		return it, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockItemStore) Scan(ctx context.Context, approvedOnly bool) ([]domain.Item, error) {
	args := m.Called(ctx, approvedOnly)
	return args.Get(0).([]domain.Item), args.Error(1)
}
func (m *mockItemStore) ScanPending(ctx context.Context) ([]domain.Item, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Item), args.Error(1)
}
func (m *mockItemStore) ListByUser(ctx context.Context, userID string) ([]domain.Item, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Item), args.Error(1)
}
func (m *mockItemStore) Update(ctx context.Context, itemID string, updates map[string]interface{}) error {
	return m.Called(ctx, itemID, updates).Error(0)
}
func (m *mockItemStore) SetOffer(ctx context.Context, itemID, offerPrice string, n *domain.Notification) error {
	return m.Called(ctx, itemID, offerPrice, n).Error(0)
}
func (m *mockItemStore) Approve(ctx context.Context, itemID string, n *domain.Notification) error {
	return m.Called(ctx, itemID, n).Error(0)
}
func (m *mockItemStore) MarkSold(ctx context.Context, itemID string, n *domain.Notification) error {
	return m.Called(ctx, itemID, n).Error(0)
}
func (m *mockItemStore) DeleteDeclined(ctx context.Context, itemID string, n *domain.Notification) error {
	return m.Called(ctx, itemID, n).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) ListByRole(ctx context.Context, role string) ([]domain.User, error) {
	args := m.Called(ctx, role)
	return args.Get(0).([]domain.User), args.Error(1)
}

type mockCategoryStore struct{ mock.Mock }

func (m *mockCategoryStore) Get(ctx context.Context, categoryID string) (*domain.Category, error) {
	args := m.Called(ctx, categoryID)
	if c, _ := args.Get(0).(*domain.Category); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

// --- helpers ---

func newService(is *mockItemStore, us *mockUserStore, cs *mockCategoryStore, ml *mockMailer, sms *mockSMS) Service {
	return NewService(ServiceDeps{
		ItemRepo:     is,
		UserRepo:     us,
		CategoryRepo: cs,
		Mailer:       ml,
		SMSSender:    sms,
	})
}

func ptr[T any](v T) *T { return &v }

// --- Create tests ---

func TestCreate_InvalidListPrice(t *testing.T) {
	svc := newService(&mockItemStore{}, &mockUserStore{}, &mockCategoryStore{}, nil, nil)

	for _, price := range []string{"abc", "-1.00", ""} {
		_, err := svc.Create(context.Background(), "u1", domain.CreateItemRequest{
			Name:      "Lamp",
			ListPrice: price,
		})
		require.Error(t, err, price)
		assert.True(t, errors.Is(err, domain.ErrBadRequest))
	}
}

func TestCreate_InvalidPurchaseDate(t *testing.T) {
	svc := newService(&mockItemStore{}, &mockUserStore{}, &mockCategoryStore{}, nil, nil)

	_, err := svc.Create(context.Background(), "u1", domain.CreateItemRequest{
		Name:         "Lamp",
		ListPrice:    "10.00",
		PurchaseDate: ptr("12/05/2020"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestCreate_UnknownCategory(t *testing.T) {
	cs := &mockCategoryStore{}
	cs.On("Get", mock.Anything, "c-missing").Return(nil, domain.ErrNotFound)

	svc := newService(&mockItemStore{}, &mockUserStore{}, cs, nil, nil)
	_, err := svc.Create(context.Background(), "u1", domain.CreateItemRequest{
		Name:        "Lamp",
		ListPrice:   "10.00",
		CategoryIDs: []string{"c-missing"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	cs.AssertExpectations(t)
}

func TestCreate_HappyPath_NotifiesAdmins(t *testing.T) {
	is := &mockItemStore{}
	us := &mockUserStore{}
	us.On("ListByRole", mock.Anything, domain.RoleAdmin).Return([]domain.User{
		{UserID: "a1"}, {UserID: "a2"},
	}, nil)

	var captured []domain.Notification
	is.On("CreateWithNotifications", mock.Anything, mock.AnythingOfType("*domain.Item"), mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).([]domain.Notification)
		}).Return(nil)

	svc := newService(is, us, &mockCategoryStore{}, nil, nil)
	it, err := svc.Create(context.Background(), "u1", domain.CreateItemRequest{
		Name:      "Vintage Lamp",
		ListPrice: "100",
	})

	require.NoError(t, err)
	assert.Equal(t, "100.00", it.ListPrice)
	assert.Equal(t, "u1", it.UserID)
	assert.False(t, it.Approved)
	assert.Nil(t, it.OfferPrice)
	require.Len(t, captured, 2)
	assert.Equal(t, domain.NotificationInfo, captured[0].Type)
	assert.Equal(t, "a1", captured[0].UserID)
	assert.Equal(t, "a2", captured[1].UserID)
	is.AssertExpectations(t)
	us.AssertExpectations(t)
}

// --- List / Get visibility tests ---

func TestList_AdminSeesEverything(t *testing.T) {
	is := &mockItemStore{}
	all := []domain.Item{{ItemID: "i1"}, {ItemID: "i2"}}
	is.On("Scan", mock.Anything, false).Return(all, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	items, err := svc.List(context.Background(), "admin-1", true)

	require.NoError(t, err)
	assert.Equal(t, all, items)
	is.AssertExpectations(t)
}

func TestList_UserSeesApprovedPlusOwn(t *testing.T) {
	is := &mockItemStore{}
	is.On("Scan", mock.Anything, true).Return([]domain.Item{
		{ItemID: "i1", Approved: true},
		{ItemID: "i2", Approved: true, UserID: "u1"},
	}, nil)
	is.On("ListByUser", mock.Anything, "u1").Return([]domain.Item{
		{ItemID: "i2", Approved: true, UserID: "u1"},
		{ItemID: "i3", UserID: "u1"},
	}, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	items, err := svc.List(context.Background(), "u1", false)

	require.NoError(t, err)
	require.Len(t, items, 3)
	ids := []string{items[0].ItemID, items[1].ItemID, items[2].ItemID}
	assert.ElementsMatch(t, []string{"i1", "i2", "i3"}, ids)
	is.AssertExpectations(t)
}

func TestGet_UnapprovedHiddenFromStrangers(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{ItemID: "i1", UserID: "u1"}, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	_, err := svc.Get(context.Background(), "i1", "u2", false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGet_OwnerSeesUnapproved(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{ItemID: "i1", UserID: "u1"}, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	it, err := svc.Get(context.Background(), "i1", "u1", false)

	require.NoError(t, err)
	assert.Equal(t, "i1", it.ItemID)
}

// --- Update tests ---

func TestUpdate_NotOwner(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{ItemID: "i1", UserID: "u1"}, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	_, err := svc.Update(context.Background(), "i1", "u2", domain.UpdateItemRequest{Name: ptr("x")})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestUpdate_LockedAfterOffer(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", UserID: "u1", OfferPrice: ptr("42.50"),
	}, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	_, err := svc.Update(context.Background(), "i1", "u1", domain.UpdateItemRequest{Name: ptr("x")})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestUpdate_HappyPath(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{ItemID: "i1", UserID: "u1"}, nil).Once()
	is.On("Update", mock.Anything, "i1", map[string]interface{}{fieldName: "New name"}).Return(nil)
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{ItemID: "i1", UserID: "u1", Name: "New name"}, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	it, err := svc.Update(context.Background(), "i1", "u1", domain.UpdateItemRequest{Name: ptr("New name")})

	require.NoError(t, err)
	assert.Equal(t, "New name", it.Name)
	is.AssertExpectations(t)
}

// --- Approve tests ---

func TestApprove_ComputesMarkedUpOffer(t *testing.T) {
	purchased := time.Now().UTC().AddDate(-3, -1, 0)
	is := &mockItemStore{}
	us := &mockUserStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", Name: "Bike", UserID: "u1", ListPrice: "100.00", PurchaseDate: &purchased,
	}, nil)
	is.On("SetOffer", mock.Anything, "i1", "80.50", mock.AnythingOfType("*domain.Notification")).
		Run(func(args mock.Arguments) {
			n := args.Get(3).(*domain.Notification)
			assert.Equal(t, domain.NotificationOffer, n.Type)
			assert.Equal(t, "u1", n.UserID)
			require.NotNil(t, n.OfferPrice)
			assert.Equal(t, "80.50", *n.OfferPrice)
		}).Return(nil)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "o@example.com"}, nil)

	ml := &mockMailer{}
	ml.On("SendEmail", "o@example.com", mock.Anything, mock.Anything).Return(nil)

	svc := newService(is, us, &mockCategoryStore{}, ml, nil)
	offer, err := svc.Approve(context.Background(), "i1")

	require.NoError(t, err)
	assert.Equal(t, "80.50", offer)
	is.AssertExpectations(t)
	ml.AssertExpectations(t)
}

func TestApprove_NoPurchaseDateUsesListPrice(t *testing.T) {
	is := &mockItemStore{}
	us := &mockUserStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", Name: "Bike", UserID: "u1", ListPrice: "100.00",
	}, nil)
	is.On("SetOffer", mock.Anything, "i1", "115.00", mock.Anything).Return(nil)
	us.On("Get", mock.Anything, "u1").Return(nil, domain.ErrNotFound)

	svc := newService(is, us, &mockCategoryStore{}, nil, nil)
	offer, err := svc.Approve(context.Background(), "i1")

	require.NoError(t, err)
	assert.Equal(t, "115.00", offer)
}

func TestApprove_AlreadyOffered(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", UserID: "u1", ListPrice: "100.00", OfferPrice: ptr("80.50"),
	}, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	_, err := svc.Approve(context.Background(), "i1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestApprove_RaceSurfacesConflict(t *testing.T) {
	is := &mockItemStore{}
	us := &mockUserStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", Name: "Bike", UserID: "u1", ListPrice: "100.00",
	}, nil)
	is.On("SetOffer", mock.Anything, "i1", "115.00", mock.Anything).Return(domain.ErrConflict)

	svc := newService(is, us, &mockCategoryStore{}, nil, nil)
	_, err := svc.Approve(context.Background(), "i1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	us.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestApprove_AlertFailuresDoNotFailTransition(t *testing.T) {
	is := &mockItemStore{}
	us := &mockUserStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", Name: "Bike", UserID: "u1", ListPrice: "100.00",
	}, nil)
	is.On("SetOffer", mock.Anything, "i1", "115.00", mock.Anything).Return(nil)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{
		UserID: "u1", Email: "o@example.com", Phone: "5551234567",
	}, nil)

	ml := &mockMailer{}
	ml.On("SendEmail", "o@example.com", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	sms := &mockSMS{}
	sms.On("SendSMS", mock.Anything, "+15551234567", mock.Anything).Return(errors.New("sns down"))

	svc := newService(is, us, &mockCategoryStore{}, ml, sms)
	offer, err := svc.Approve(context.Background(), "i1")

	require.NoError(t, err)
	assert.Equal(t, "115.00", offer)
	ml.AssertExpectations(t)
	sms.AssertExpectations(t)
}

// --- Decline tests ---

func TestDecline_RemovesAndNotifies(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", Name: "Bike", UserID: "u1",
	}, nil)
	is.On("DeleteDeclined", mock.Anything, "i1", mock.AnythingOfType("*domain.Notification")).
		Run(func(args mock.Arguments) {
			n := args.Get(2).(*domain.Notification)
			assert.Equal(t, domain.NotificationDeclined, n.Type)
			assert.Equal(t, "u1", n.UserID)
			assert.Nil(t, n.ItemID)
		}).Return(nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	require.NoError(t, svc.Decline(context.Background(), "i1"))
	is.AssertExpectations(t)
}

func TestDecline_ApprovedListingIsProtected(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", UserID: "u1", Approved: true,
	}, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	err := svc.Decline(context.Background(), "i1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

// --- AcceptOffer / DeclineOffer tests ---

func TestAcceptOffer_HappyPath(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", Name: "Bike", UserID: "u1", OfferPrice: ptr("80.50"),
	}, nil)
	is.On("Approve", mock.Anything, "i1", mock.AnythingOfType("*domain.Notification")).
		Run(func(args mock.Arguments) {
			n := args.Get(2).(*domain.Notification)
			assert.Equal(t, domain.NotificationApproved, n.Type)
		}).Return(nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	it, err := svc.AcceptOffer(context.Background(), "i1", "u1")

	require.NoError(t, err)
	assert.True(t, it.Approved)
	is.AssertExpectations(t)
}

func TestAcceptOffer_NotOwner(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", UserID: "u1", OfferPrice: ptr("80.50"),
	}, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	_, err := svc.AcceptOffer(context.Background(), "i1", "u2")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestAcceptOffer_NoOffer(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{ItemID: "i1", UserID: "u1"}, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	_, err := svc.AcceptOffer(context.Background(), "i1", "u1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestDeclineOffer_RemovesItem(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", Name: "Bike", UserID: "u1", OfferPrice: ptr("80.50"),
	}, nil)
	is.On("DeleteDeclined", mock.Anything, "i1", mock.AnythingOfType("*domain.Notification")).Return(nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	require.NoError(t, svc.DeclineOffer(context.Background(), "i1", "u1"))
	is.AssertExpectations(t)
}

func TestDeclineOffer_AcceptedListingConflicts(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", Name: "Bike", UserID: "u1", Approved: true, OfferPrice: ptr("80.50"),
	}, nil)
	is.On("DeleteDeclined", mock.Anything, "i1", mock.AnythingOfType("*domain.Notification")).
		Return(fmt.Errorf("transition guard failed: %w", domain.ErrConflict))

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	err := svc.DeclineOffer(context.Background(), "i1", "u1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

// --- MarkSold tests ---

func TestMarkSold_RequiresApproval(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{ItemID: "i1", UserID: "u1"}, nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	err := svc.MarkSold(context.Background(), "i1", "u1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestMarkSold_HappyPath(t *testing.T) {
	is := &mockItemStore{}
	is.On("Get", mock.Anything, "i1").Return(&domain.Item{
		ItemID: "i1", Name: "Bike", UserID: "u1", Approved: true,
	}, nil)
	is.On("MarkSold", mock.Anything, "i1", mock.AnythingOfType("*domain.Notification")).
		Run(func(args mock.Arguments) {
			n := args.Get(2).(*domain.Notification)
			assert.Equal(t, domain.NotificationSold, n.Type)
		}).Return(nil)

	svc := newService(is, &mockUserStore{}, &mockCategoryStore{}, nil, nil)
	require.NoError(t, svc.MarkSold(context.Background(), "i1", "u1"))
	is.AssertExpectations(t)
}
