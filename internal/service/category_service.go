package service

import (
	"context"

	"planner/internal/model"
	"planner/internal/repository"
)

// CategoryService provides helpers around categories.
type CategoryService struct {
	repo *repository.CategoryRepository
}

func NewCategoryService(repo *repository.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context, user *model.User) ([]model.Category, error) {
	return s.repo.ListByUser(ctx, user.ID)
}

// Names maps category ids to names for rendering task lists.
func (s *CategoryService) Names(ctx context.Context, user *model.User) (map[uint]string, error) {
	return s.repo.NamesByUser(ctx, user.ID)
}
