package services

import (
	"context"

	"social-service/internal/events"
	"social-service/internal/models"
	"social-service/internal/repositories"
)

// RequestView is a pending request with the other party attached.
type RequestView struct {
	models.FriendRequest
	FromUser *models.Author `json:"from_user,omitempty"`
	ToUser   *models.Author `json:"to_user,omitempty"`
}

type FriendService struct {
	friends   repositories.FriendRepository
	users     repositories.UserRepository
	directory UserDirectory
	notifier  events.Notifier
}

func NewFriendService(friends repositories.FriendRepository, users repositories.UserRepository, directory UserDirectory, notifier events.Notifier) *FriendService {
	return &FriendService{friends: friends, users: users, directory: directory, notifier: notifier}
}

func (s *FriendService) SendRequest(ctx context.Context, fromUserID, toUserID int64) (*models.FriendRequest, error) {
	if fromUserID == toUserID {
		return nil, repositories.ErrSelfRequest
	}
	if _, err := s.users.GetByID(ctx, toUserID); err != nil {
		return nil, err
	}

	req, err := s.friends.CreateRequest(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.notifier, events.New(models.EventFriendRequestSent, fromUserID, []int64{req.FromUserID, req.ToUserID},
		models.RequestSentPayload{RequestID: req.ID, FromUserID: req.FromUserID, ToUserID: req.ToUserID}))
	return req, nil
}

func (s *FriendService) AcceptRequest(ctx context.Context, requestID, userID int64) (*models.FriendRequest, error) {
	req, err := s.friends.AcceptRequest(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	s.publishDecision(ctx, models.EventFriendRequestAccepted, userID, req)
	return req, nil
}

func (s *FriendService) RejectRequest(ctx context.Context, requestID, userID int64) (*models.FriendRequest, error) {
	req, err := s.friends.RejectRequest(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	s.publishDecision(ctx, models.EventFriendRequestRejected, userID, req)
	return req, nil
}

func (s *FriendService) publishDecision(ctx context.Context, eventType string, actorID int64, req *models.FriendRequest) {
	publish(ctx, s.notifier, events.New(eventType, actorID, []int64{req.FromUserID, req.ToUserID},
		models.RequestDecisionPayload{RequestID: req.ID, FromUserID: req.FromUserID, ToUserID: req.ToUserID}))
}

func (s *FriendService) ListFriends(ctx context.Context, userID int64) ([]models.Author, error) {
	ids, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	users, err := s.directory.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Author, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *FriendService) IncomingRequests(ctx context.Context, userID int64) ([]RequestView, error) {
	reqs, err := s.friends.GetIncomingRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, reqs)
}

func (s *FriendService) OutgoingRequests(ctx context.Context, userID int64) ([]RequestView, error) {
	reqs, err := s.friends.GetOutgoingRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, reqs)
}

func (s *FriendService) views(ctx context.Context, reqs []models.FriendRequest) ([]RequestView, error) {
	ids := make([]int64, 0, len(reqs)*2)
	for _, r := range reqs {
		ids = append(ids, r.FromUserID, r.ToUserID)
	}
	users, err := s.directory.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]RequestView, 0, len(reqs))
	for _, r := range reqs {
		view := RequestView{FriendRequest: r}
		if u, ok := users[r.FromUserID]; ok {
			view.FromUser = &u
		}
		if u, ok := users[r.ToUserID]; ok {
			view.ToUser = &u
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *FriendService) AreFriends(ctx context.Context, userID, otherID int64) (bool, error) {
	return s.friends.AreFriends(ctx, userID, otherID)
}

// Relationship describes how viewerID relates to otherID, for profile pages.
func (s *FriendService) Relationship(ctx context.Context, viewerID, otherID int64) (string, error) {
	if viewerID == otherID {
		return "self", nil
	}
	friends, err := s.friends.AreFriends(ctx, viewerID, otherID)
	if err != nil {
		return "", err
	}
	if friends {
		return "friends", nil
	}
	pending, err := s.friends.HasPendingRequest(ctx, viewerID, otherID)
	if err != nil {
		return "", err
	}
	if pending {
		return "pending", nil
	}
	return "none", nil
}
