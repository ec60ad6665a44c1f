package wall

import (
	"context"
	"fmt"
	"strings"

	"github.com/akeren/launch-waitlist/internal/avatar"
	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/pkg/constants"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const anonymousName = "Anonymous"

type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
	IsOG   bool   `json:"isOG"`
	Avatar string `json:"avatar"`
}

type WallResponse struct {
	Members []Member `json:"members"`
}

// AvatarResolver resolves avatars for a batch in input order.
type AvatarResolver interface {
	ResolveAll(ctx context.Context, subjects []avatar.Subject) []string
}

type WallService interface {
	Members(ctx context.Context) (*WallResponse, error)
}

type wallService struct {
	logger     *log.Logger
	repository WallRepository
	avatars    AvatarResolver
	size       int
}

func NewWallService(logger *log.Logger, repository WallRepository, avatars AvatarResolver) WallService {
	return &wallService{
		logger:     logger,
		repository: repository,
		avatars:    avatars,
		size:       constants.WallSize,
	}
}

func (s *wallService) Members(ctx context.Context) (*WallResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	entries, err := s.repository.Latest(ctx, s.size)
	if err != nil {
		logger.Error("Failed to load wall entries", "error", err)
		return nil, err
	}

	subjects := make([]avatar.Subject, len(entries))
	for i, e := range entries {
		subjects[i] = avatar.Subject{ID: e.ID, Email: e.Email}
	}
	avatars := s.avatars.ResolveAll(ctx, subjects)

	members := make([]Member, len(entries))
	for i, e := range entries {
		members[i] = Member{
			ID:     e.ID,
			Name:   e.DisplayName(anonymousName),
			Handle: handleFor(e.DisplayName(""), i),
			IsOG:   e.IsOG,
			Avatar: avatars[i],
		}
	}

	logger.Info("Loaded wall members", "count", len(members))
	return &WallResponse{Members: members}, nil
}

var lower = cases.Lower(language.Und)

// handleFor derives a handle from the first word of name, keeping only [a-z0-9].
// Position-based handles cover members without a usable name.
func handleFor(name string, index int) string {
	words := strings.Fields(name)
	if len(words) > 0 {
		var b strings.Builder
		for _, r := range lower.String(words[0]) {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return fmt.Sprintf("user%d", index)
}
