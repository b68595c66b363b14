package modbot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/google/uuid"
)

var ErrApprovalNotFound = errors.New("approval item not found or already processed")

type Submitter struct {
	Id          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username,omitempty"`
}

// Identity is the line shown to the owner next to a submission.
func (s Submitter) Identity() string {
	name := s.DisplayName
	if name == "" {
		name = "unknown"
	}
	if s.Username != "" {
		return fmt.Sprintf("%s (@%s, id %d)", name, s.Username, s.Id)
	}
	return fmt.Sprintf("%s (id %d)", name, s.Id)
}

type Poll struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func (p Poll) Preview() string {
	lines := []string{"📊 " + p.Question}
	for _, option := range p.Options {
		lines = append(lines, "• "+option)
	}
	return strings.Join(lines, "\n")
}

// Approval is a finalized submission waiting for the owner's decision.
type Approval struct {
	Id        string     `json:"id"`
	Media     []MediaRef `json:"media"`
	Caption   *string    `json:"caption,omitempty"`
	Poll      *Poll      `json:"poll,omitempty"`
	Submitter Submitter  `json:"submitter"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewApproval(submitter Submitter, draft Draft) *Approval {
	approval := &Approval{
		Id:        uuid.NewString(),
		Media:     append([]MediaRef(nil), draft.Media...),
		Submitter: submitter,
		CreatedAt: time.Now(),
	}
	if draft.Poll != nil {
		poll := *draft.Poll
		approval.Poll = &poll
	} else if draft.Caption != nil {
		approval.Caption = pointer.ToString(*draft.Caption)
	}
	return approval
}

func isApprovalValid(approval *Approval) bool {
	return approval != nil && approval.Id != "" && len(approval.Media) > 0 && approval.Submitter.Id != 0 &&
		(approval.Poll == nil || len(approval.Poll.Options) >= MinPollOptions)
}

// Registry holds approvals for the lifetime of the process. Pop is the only way
// an approval leaves the registry, and it hands a given id out at most once.
// Contact keeps resolving the submitter of an id after it has been popped.
type Registry interface {
	Put(approval *Approval) error
	Pop(id string) (*Approval, error)
	Get(id string) (*Approval, error)
	List() ([]*Approval, error)
	Contact(id string) (Submitter, error)
}

type MemoryRegistry struct {
	mutex     sync.Mutex
	approvals map[string]*Approval
	contacts  map[string]Submitter
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		approvals: make(map[string]*Approval),
		contacts:  make(map[string]Submitter),
	}
}

func (reg *MemoryRegistry) Put(approval *Approval) error {
	defer reg.mutex.Unlock()
	reg.mutex.Lock()

	if !isApprovalValid(approval) {
		return errors.New("approval is not valid")
	}
	if _, contains := reg.approvals[approval.Id]; contains {
		return fmt.Errorf("approval with id %s already exists", approval.Id)
	}
	reg.approvals[approval.Id] = approval
	reg.contacts[approval.Id] = approval.Submitter
	return nil
}

func (reg *MemoryRegistry) Pop(id string) (*Approval, error) {
	defer reg.mutex.Unlock()
	reg.mutex.Lock()

	approval, contains := reg.approvals[id]
	if !contains {
		return nil, ErrApprovalNotFound
	}
	delete(reg.approvals, id)
	return approval, nil
}

func (reg *MemoryRegistry) Get(id string) (*Approval, error) {
	defer reg.mutex.Unlock()
	reg.mutex.Lock()

	approval, contains := reg.approvals[id]
	if !contains {
		return nil, ErrApprovalNotFound
	}
	return approval, nil
}

func (reg *MemoryRegistry) List() ([]*Approval, error) {
	defer reg.mutex.Unlock()
	reg.mutex.Lock()

	approvals := make([]*Approval, 0, len(reg.approvals))
	for _, approval := range reg.approvals {
		approvals = append(approvals, approval)
	}
	sortApprovals(approvals)
	return approvals, nil
}

func (reg *MemoryRegistry) Contact(id string) (Submitter, error) {
	defer reg.mutex.Unlock()
	reg.mutex.Lock()

	submitter, contains := reg.contacts[id]
	if !contains {
		return Submitter{}, ErrApprovalNotFound
	}
	return submitter, nil
}

func sortApprovals(approvals []*Approval) {
	sort.Slice(approvals, func(i, j int) bool {
		if approvals[i].CreatedAt.Equal(approvals[j].CreatedAt) {
			return approvals[i].Id < approvals[j].Id
		}
		return approvals[i].CreatedAt.Before(approvals[j].CreatedAt)
	})
}
