package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	socialMetricsOnce sync.Once

	friendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friend_requests_total",
			Help: "Total number of friend request attempts",
		},
		[]string{"status"},
	)

	friendAcceptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friend_accepts_total",
			Help: "Total number of friend request accept attempts",
		},
		[]string{"status"},
	)

	friendRejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friend_rejects_total",
			Help: "Total number of friend request reject attempts",
		},
		[]string{"status"},
	)

	postsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posts_created_total",
			Help: "Total number of post creation attempts",
		},
		[]string{"status"},
	)

	likeTogglesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "like_toggles_total",
			Help: "Total number of like toggles by resulting state",
		},
		[]string{"state"},
	)

	commentsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comments_created_total",
			Help: "Total number of comment attempts",
		},
		[]string{"status"},
	)
)

func RegisterSocialMetrics() {
	socialMetricsOnce.Do(func() {
		prometheus.MustRegister(
			friendRequestsTotal, friendAcceptsTotal, friendRejectsTotal,
			postsCreatedTotal, likeTogglesTotal, commentsCreatedTotal,
		)
	})
}

func IncFriendRequest(status string) {
	RegisterSocialMetrics()
	friendRequestsTotal.WithLabelValues(status).Inc()
}

func IncFriendAccept(status string) {
	RegisterSocialMetrics()
	friendAcceptsTotal.WithLabelValues(status).Inc()
}

func IncFriendReject(status string) {
	RegisterSocialMetrics()
	friendRejectsTotal.WithLabelValues(status).Inc()
}

func IncPostCreated(status string) {
	RegisterSocialMetrics()
	postsCreatedTotal.WithLabelValues(status).Inc()
}

func IncLikeToggle(liked bool) {
	RegisterSocialMetrics()
	state := "unliked"
	if liked {
		state = "liked"
	}
	likeTogglesTotal.WithLabelValues(state).Inc()
}

func IncComment(status string) {
	RegisterSocialMetrics()
	commentsCreatedTotal.WithLabelValues(status).Inc()
}
