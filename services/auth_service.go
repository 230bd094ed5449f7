package services

import (
	"errors"

	"github.com/znehraks/mini-game-heaven/config"
	"github.com/znehraks/mini-game-heaven/models"
	"github.com/znehraks/mini-game-heaven/utils"
)

func RegisterUser(email, password, nickname string) (*models.User, error) {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:    email,
		Password: hashed,
		Nickname: nickname,
	}
	if err := config.DB.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func AuthenticateUser(email, password string) (string, error) {
	var user models.User
	if err := config.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return "", errors.New("user not found")
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return "", errors.New("incorrect password")
	}
	return utils.GenerateJWT(user.ID, user.Email)
}
