package user

import (
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type UserContainer struct {
	Repo    UserRepository
	Service UserService
	Handler *Handler
}

func NewUserContainer(db *gorm.DB, oauthConfig *oauth2.Config, cookieDomain string) *UserContainer {
	repo := NewUserRepository(db)
	service := NewUserService(repo, NewGoogleIdentity(oauthConfig))
	handler := NewHandler(service, cookieDomain)

	return &UserContainer{
		Repo:    repo,
		Service: service,
		Handler: handler,
	}
}
