package services

import (
	"context"
	"fmt"

	"github.com/bloglist/apiserver/types"
)

// ListingService answers collection queries. Ordering comes from the blog
// repository; this service only decorates each blog with its creator.
type ListingService struct {
	blogs BlogRepository
	users UserRepository
}

func NewListingService(blogs BlogRepository, users UserRepository) *ListingService {
	return &ListingService{blogs: blogs, users: users}
}

// ListOrderedByLikes returns every blog, most liked first, ties in creation
// order.
func (s *ListingService) ListOrderedByLikes(ctx context.Context) ([]types.BlogListing, error) {
	blogs, err := s.blogs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	if len(blogs) == 0 {
		return []types.BlogListing{}, nil
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	creators := make(map[int64]types.UserSummary, len(users))
	for _, user := range users {
		creators[user.ID] = user.Summary()
	}

	listings := make([]types.BlogListing, 0, len(blogs))
	for _, blog := range blogs {
		creator, ok := creators[blog.CreatorID]
		if !ok {
			creator = types.UserSummary{ID: blog.CreatorID}
		}
		listings = append(listings, types.BlogListing{Blog: blog, Creator: creator})
	}
	return listings, nil
}
