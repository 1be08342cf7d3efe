package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"social-service/internal/models"
	"social-service/internal/repositories"
)

var _ repositories.FriendRepository = (*FriendStore)(nil)

// FriendStore keeps requests and friendships in maps guarded by one lock.
// A friendship is a single entry keyed by its canonical pair; the adjacency
// index is maintained under the same lock.
type FriendStore struct {
	mu            sync.RWMutex
	nextRequestID int64
	nextEdgeID    int64
	requests      map[int64]*models.FriendRequest
	pending       map[models.Pair]int64
	friendships   map[models.Pair]models.Friendship
	adjacency     map[int64]map[int64]struct{}
}

func NewFriendStore() *FriendStore {
	return &FriendStore{
		requests:    make(map[int64]*models.FriendRequest),
		pending:     make(map[models.Pair]int64),
		friendships: make(map[models.Pair]models.Friendship),
		adjacency:   make(map[int64]map[int64]struct{}),
	}
}

func (s *FriendStore) CreateRequest(_ context.Context, fromUserID, toUserID int64) (*models.FriendRequest, error) {
	if fromUserID == toUserID {
		return nil, repositories.ErrSelfRequest
	}
	pair := models.PairOf(fromUserID, toUserID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.friendships[pair]; ok {
		return nil, repositories.ErrAlreadyFriends
	}
	if _, ok := s.pending[pair]; ok {
		return nil, repositories.ErrPendingExists
	}

	s.nextRequestID++
	now := time.Now().UTC()
	req := &models.FriendRequest{
		ID:         s.nextRequestID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Status:     models.RequestPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.requests[req.ID] = req
	s.pending[pair] = req.ID

	out := *req
	return &out, nil
}

func (s *FriendStore) GetRequest(_ context.Context, requestID int64) (*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, repositories.ErrRequestNotFound
	}
	out := *req
	return &out, nil
}

func (s *FriendStore) GetIncomingRequests(_ context.Context, userID int64) ([]models.FriendRequest, error) {
	return s.pendingWhere(func(r *models.FriendRequest) bool { return r.ToUserID == userID }), nil
}

func (s *FriendStore) GetOutgoingRequests(_ context.Context, userID int64) ([]models.FriendRequest, error) {
	return s.pendingWhere(func(r *models.FriendRequest) bool { return r.FromUserID == userID }), nil
}

func (s *FriendStore) pendingWhere(match func(*models.FriendRequest) bool) []models.FriendRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.FriendRequest{}
	for _, id := range s.pending {
		req := s.requests[id]
		if match(req) {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *FriendStore) AcceptRequest(_ context.Context, requestID, userID int64) (*models.FriendRequest, error) {
	return s.answer(requestID, userID, models.RequestAccepted)
}

func (s *FriendStore) RejectRequest(_ context.Context, requestID, userID int64) (*models.FriendRequest, error) {
	return s.answer(requestID, userID, models.RequestRejected)
}

func (s *FriendStore) answer(requestID, userID int64, next models.RequestStatus) (*models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, repositories.ErrRequestNotFound
	}
	if req.ToUserID != userID {
		return nil, repositories.ErrRequestForbidden
	}
	if !req.Status.CanTransition(next) {
		return nil, repositories.ErrRequestAnswered
	}

	now := time.Now().UTC()
	pair := models.PairOf(req.FromUserID, req.ToUserID)
	req.Status = next
	req.UpdatedAt = now
	delete(s.pending, pair)

	if next == models.RequestAccepted {
		if _, exists := s.friendships[pair]; !exists {
			s.nextEdgeID++
			s.friendships[pair] = models.Friendship{
				ID:         s.nextEdgeID,
				UserLowID:  pair.Low,
				UserHighID: pair.High,
				CreatedAt:  now,
			}
			s.link(pair.Low, pair.High)
			s.link(pair.High, pair.Low)
		}
	}

	out := *req
	return &out, nil
}

func (s *FriendStore) link(userID, friendID int64) {
	set, ok := s.adjacency[userID]
	if !ok {
		set = make(map[int64]struct{})
		s.adjacency[userID] = set
	}
	set[friendID] = struct{}{}
}

func (s *FriendStore) ListFriends(_ context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	friends := make([]int64, 0, len(s.adjacency[userID]))
	for id := range s.adjacency[userID] {
		friends = append(friends, id)
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i] < friends[j] })
	return friends, nil
}

func (s *FriendStore) HasPendingRequest(_ context.Context, userID, otherID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.pending[models.PairOf(userID, otherID)]
	return ok, nil
}

func (s *FriendStore) AreFriends(_ context.Context, userID, otherID int64) (bool, error) {
	if userID == otherID {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.friendships[models.PairOf(userID, otherID)]
	return ok, nil
}
