package bot

import "sync"

// session is what the bot remembers about one chat between messages: an
// unfinished task dialog and/or an action waiting for confirmation.
type session struct {
	dialog  *conversationState
	pending *confirmationRequest
}

// sessions is safe for concurrent use.
type sessions struct {
	mu   sync.Mutex
	byID map[int64]*session
}

func newSessions() *sessions {
	return &sessions{byID: make(map[int64]*session)}
}

func (s *sessions) update(userID int64, fn func(*session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[userID]
	if !ok {
		cur = &session{}
	}
	fn(cur)
	if cur.dialog == nil && cur.pending == nil {
		delete(s.byID, userID)
		return
	}
	s.byID[userID] = cur
}

func (s *sessions) dialog(userID int64) *conversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.byID[userID]; ok {
		return cur.dialog
	}
	return nil
}

func (s *sessions) pending(userID int64) (confirmationRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.byID[userID]; ok && cur.pending != nil {
		return *cur.pending, true
	}
	return confirmationRequest{}, false
}

func (s *sessions) startDialog(userID int64, state *conversationState) {
	s.update(userID, func(cur *session) { cur.dialog = state })
}

func (s *sessions) endDialog(userID int64) {
	s.update(userID, func(cur *session) { cur.dialog = nil })
}

func (s *sessions) await(userID int64, req confirmationRequest) {
	s.update(userID, func(cur *session) { cur.pending = &req })
}

func (s *sessions) resolve(userID int64) {
	s.update(userID, func(cur *session) { cur.pending = nil })
}

// reset forgets both the dialog and the pending confirmation.
func (s *sessions) reset(userID int64) {
	s.update(userID, func(cur *session) { *cur = session{} })
}
