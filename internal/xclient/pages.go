package xclient

import (
	"context"

	"flockrank/internal/model"
)

// FollowerStream lazily walks the cursor-paginated follower list.
// It is finite and restartable from the beginning (construct a new stream),
// but not resumable mid-stream: cursors must be followed in order.
type FollowerStream struct {
	client Client
	userID string
	cursor string
	buf    []model.User
	pos    int
	done   bool
}

// NewFollowerStream returns a stream over userID's followers.
func NewFollowerStream(client Client, userID string) *FollowerStream {
	return &FollowerStream{client: client, userID: userID}
}

// Next returns the next follower, fetching pages on demand. The second
// return is false once the stream is exhausted.
func (s *FollowerStream) Next(ctx context.Context) (model.User, bool, error) {
	for s.pos >= len(s.buf) {
		if s.done {
			return model.User{}, false, nil
		}
		page, err := s.client.FollowerPage(ctx, s.userID, s.cursor)
		if err != nil {
			return model.User{}, false, err
		}
		s.buf = page.Users
		s.pos = 0
		s.cursor = page.NextToken
		if s.cursor == "" {
			s.done = true
		}
		if len(s.buf) == 0 && s.done {
			return model.User{}, false, nil
		}
	}
	u := s.buf[s.pos]
	s.pos++
	return u, true, nil
}
