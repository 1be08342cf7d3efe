package services

import (
	"context"

	"social-service/internal/repositories"
)

// VisibilityResolver decides whose posts a viewer may see: their own and their friends'.
// Nothing is cached, so an accepted request is visible on the next read.
type VisibilityResolver struct {
	friends repositories.FriendRepository
}

func NewVisibilityResolver(friends repositories.FriendRepository) *VisibilityResolver {
	return &VisibilityResolver{friends: friends}
}

// VisibleAuthors returns the viewer followed by their friends.
func (v *VisibilityResolver) VisibleAuthors(ctx context.Context, viewerID int64) ([]int64, error) {
	friends, err := v.friends.ListFriends(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return append([]int64{viewerID}, friends...), nil
}

func (v *VisibilityResolver) IsVisible(ctx context.Context, viewerID, authorID int64) (bool, error) {
	if viewerID == authorID {
		return true, nil
	}
	return v.friends.AreFriends(ctx, viewerID, authorID)
}

// Audience lists the users who can see authorID's posts. Friendship is
// symmetric, so this is the author's own visible set.
func (v *VisibilityResolver) Audience(ctx context.Context, authorID int64) ([]int64, error) {
	return v.VisibleAuthors(ctx, authorID)
}
