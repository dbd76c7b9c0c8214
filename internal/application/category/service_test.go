package category

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thrifthaven-api/internal/domain"
)

type mockCategoryStore struct{ mock.Mock }

func (m *mockCategoryStore) Put(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockCategoryStore) Get(ctx context.Context, categoryID string) (*domain.Category, error) {
	args := m.Called(ctx, categoryID)
	if c, _ := args.Get(0).(*domain.Category); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCategoryStore) Scan(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Category), args.Error(1)
}
func (m *mockCategoryStore) HardDelete(ctx context.Context, categoryID string) error {
	return m.Called(ctx, categoryID).Error(0)
}

func TestCreate_AssignsIDAndPersists(t *testing.T) {
	cs := &mockCategoryStore{}
	cs.On("Put", mock.Anything, mock.AnythingOfType("*domain.Category")).Return(nil)

	svc := NewService(cs)
	c, err := svc.Create(context.Background(), domain.CategoryInput{Name: "Furniture"})

	require.NoError(t, err)
	assert.NotEmpty(t, c.CategoryID)
	assert.Equal(t, "Furniture", c.Name)
	cs.AssertExpectations(t)
}

func TestList_ReturnsStoreRows(t *testing.T) {
	cs := &mockCategoryStore{}
	cs.On("Scan", mock.Anything).Return([]domain.Category{
		{CategoryID: "c1", Name: "Books"},
		{CategoryID: "c2", Name: "Electronics"},
	}, nil)

	svc := NewService(cs)
	cats, err := svc.List(context.Background())

	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestDelete_NotFound(t *testing.T) {
	cs := &mockCategoryStore{}
	cs.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	svc := NewService(cs)
	err := svc.Delete(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	cs.AssertNotCalled(t, "HardDelete", mock.Anything, mock.Anything)
}

func TestDelete_HappyPath(t *testing.T) {
	cs := &mockCategoryStore{}
	cs.On("Get", mock.Anything, "c1").Return(&domain.Category{CategoryID: "c1", Name: "Books"}, nil)
	cs.On("HardDelete", mock.Anything, "c1").Return(nil)

	svc := NewService(cs)
	require.NoError(t, svc.Delete(context.Background(), "c1"))
	cs.AssertExpectations(t)
}
