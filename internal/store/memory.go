package store

import (
	"sort"
	"sync"
	"time"
)

// Memory is the in-process Store backend. It is also the test double for
// everything layered on top of the Store interface.
type Memory struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
	order map[string]uint64 // insertion sequence, breaks created_at ties
	seq   uint64
}

func NewMemory() *Memory {
	return &Memory{
		convs: make(map[string]*Conversation),
		order: make(map[string]uint64),
	}
}

func (m *Memory) Create(conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := cloneConversation(conv)
	m.seq++
	m.convs[c.ID] = c
	m.order[c.ID] = m.seq
	return nil
}

func (m *Memory) Get(id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.convs[id]
	if !ok {
		return nil, nil
	}
	return cloneConversation(c), nil
}

func (m *Memory) UpdateStatus(id, status string) error {
	return m.update(id, func(c *Conversation) {
		c.Status = status
	})
}

func (m *Memory) SetSpecialistResults(id string, results map[string]string) error {
	return m.update(id, func(c *Conversation) {
		c.SpecialistResults = cloneStringMap(results)
	})
}

func (m *Memory) SetVerifiedResults(id string, results map[string]VerifiedResult) error {
	return m.update(id, func(c *Conversation) {
		c.VerifiedResults = cloneVerifiedMap(results)
	})
}

func (m *Memory) SetFinalReport(id string, report *Report, completedAt time.Time) error {
	return m.update(id, func(c *Conversation) {
		c.Status = StatusCompleted
		c.FinalReport = report
		c.CompletedAt = &completedAt
	})
}

func (m *Memory) SetError(id, message string) error {
	return m.update(id, func(c *Conversation) {
		c.Status = StatusError
		c.Error = message
	})
}

func (m *Memory) Delete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.convs[id]; !ok {
		return false, nil
	}
	delete(m.convs, id)
	delete(m.order, id)
	return true, nil
}

func (m *Memory) List(limit, offset int) ([]Conversation, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*Conversation, 0, len(m.convs))
	for _, c := range m.convs {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return m.order[all[i].ID] > m.order[all[j].ID]
	})

	total := len(all)
	page := paginate(all, limit, offset)

	out := make([]Conversation, 0, len(page))
	for _, c := range page {
		out = append(out, *cloneConversation(c))
	}
	return out, total, nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) update(id string, fn func(*Conversation)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.convs[id]
	if !ok {
		return ErrNotFound
	}
	fn(c)
	return nil
}

func paginate(all []*Conversation, limit, offset int) []*Conversation {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func cloneConversation(c *Conversation) *Conversation {
	out := *c
	out.Files = append([]FileDescriptor(nil), c.Files...)
	out.SpecialistResults = cloneStringMap(c.SpecialistResults)
	out.VerifiedResults = cloneVerifiedMap(c.VerifiedResults)
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		out.CompletedAt = &t
	}
	if c.FinalReport != nil {
		r := *c.FinalReport
		r.VerifiedAnalyses = cloneVerifiedMap(c.FinalReport.VerifiedAnalyses)
		out.FinalReport = &r
	}
	return &out
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneVerifiedMap(in map[string]VerifiedResult) map[string]VerifiedResult {
	if in == nil {
		return nil
	}
	out := make(map[string]VerifiedResult, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
