package wall

import (
	"github.com/akeren/launch-waitlist/config/router"
	"github.com/akeren/launch-waitlist/internal/log"
	"gorm.io/gorm"
)

type WallControllerFactory interface {
	CreateController() *router.RESTController
}

type DefaultWallControllerFactory struct {
	db      *gorm.DB
	logger  *log.Logger
	avatars AvatarResolver
}

func NewWallControllerFactory(db *gorm.DB, logger *log.Logger, avatars AvatarResolver) WallControllerFactory {
	return &DefaultWallControllerFactory{db: db, logger: logger, avatars: avatars}
}

func (f *DefaultWallControllerFactory) CreateController() *router.RESTController {
	return NewWallController(NewWallService(f.logger, NewWallRepository(f.db), f.avatars))
}
