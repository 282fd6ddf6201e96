package modals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/ChuckD30/lyricist/internal/features/shared"
)

var (
	ErrMissingUser    = errors.New("missing user id for interaction")
	ErrTimeout        = errors.New("modal timed out")
	ErrUnexpectedType = errors.New("unexpected interaction type")
)

type ModalResponse struct {
	Interaction *discordgo.InteractionCreate
	Data        discordgo.ModalSubmitInteractionData
}

// Value returns the trimmed text input with the given custom ID.
func (r *ModalResponse) Value(customID string) string {
	return strings.TrimSpace(shared.ModalInputValue(r.Data, customID))
}

// Responder opens a modal in reply to an interaction.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Awaiter routes modal submissions back to the handler that opened the
// modal. Pending waits are keyed by modal custom ID and user.
type Awaiter struct {
	mu      sync.RWMutex
	pending map[string]chan *discordgo.InteractionCreate
}

func NewAwaiter() *Awaiter {
	return &Awaiter{
		pending: make(map[string]chan *discordgo.InteractionCreate),
	}
}

func (a *Awaiter) ShowAndAwaitModal(
	ctx context.Context,
	s Responder,
	i *discordgo.InteractionCreate,
	modal *discordgo.InteractionResponseData,
) (*ModalResponse, error) {
	userID := getUserID(i)
	if userID == "" {
		return nil, ErrMissingUser
	}

	key := modal.CustomID + ":" + userID
	ch := a.register(key)
	defer a.unregister(key, ch)

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: modal,
	})
	if err != nil {
		return nil, err
	}

	select {
	case submission := <-ch:
		if submission.Type != discordgo.InteractionModalSubmit {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedType, submission.Type)
		}
		return &ModalResponse{
			Interaction: submission,
			Data:        submission.ModalSubmitData(),
		}, nil
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

func (a *Awaiter) register(key string) chan *discordgo.InteractionCreate {
	ch := make(chan *discordgo.InteractionCreate, 1)
	a.mu.Lock()
	a.pending[key] = ch
	a.mu.Unlock()
	return ch
}

// unregister drops key unless a newer wait replaced it.
func (a *Awaiter) unregister(key string, ch chan *discordgo.InteractionCreate) {
	a.mu.Lock()
	if a.pending[key] == ch {
		delete(a.pending, key)
	}
	a.mu.Unlock()
}

// HandleInteraction delivers i to a pending wait and reports whether it was
// consumed.
func (a *Awaiter) HandleInteraction(i *discordgo.InteractionCreate) bool {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionModalSubmit {
		return false
	}

	customID := i.ModalSubmitData().CustomID
	userID := getUserID(i)
	if customID == "" || userID == "" {
		return false
	}

	key := customID + ":" + userID

	a.mu.RLock()
	ch, exists := a.pending[key]
	a.mu.RUnlock()

	if !exists {
		return false
	}

	select {
	case ch <- i:
		return true
	default:
		return false
	}
}

func getUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
