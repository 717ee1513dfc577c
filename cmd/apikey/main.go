package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/app/repository"
	"github.com/ManuelReschke/StoreFox/internal/pkg/database"
	"github.com/ManuelReschke/StoreFox/internal/pkg/env"
)

// apikey issues an operator API key for /payment-health. The user is created
// as admin when the email is unknown.
func main() {
	email := flag.String("email", "", "operator email")
	name := flag.String("name", "", "operator name for new accounts")
	flag.Parse()

	if strings.TrimSpace(*email) == "" {
		fmt.Println("Usage: go run cmd/apikey/main.go -email ops@example.com [-name \"Ops Team\"]")
		os.Exit(1)
	}

	env.SetupEnvFile()
	database.SetupDatabase()
	db := database.GetDB()

	users := repository.NewUserRepository(db)
	user, err := users.GetByEmail(strings.ToLower(strings.TrimSpace(*email)))
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("Failed to look up user: %v", err)
	}
	if user == nil {
		user = &models.User{
			Name:   strings.TrimSpace(*name),
			Email:  strings.ToLower(strings.TrimSpace(*email)),
			Role:   models.ROLE_ADMIN,
			Status: models.STATUS_ACTIVE,
		}
		if user.Name == "" {
			user.Name = "Operator"
		}
		if err := user.Validate(); err != nil {
			log.Fatalf("Invalid user: %v", err)
		}
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		log.Fatalf("Failed to generate API key: %v", err)
	}
	if err := db.Save(user).Error; err != nil {
		log.Fatalf("Failed to store API key: %v", err)
	}

	log.Printf("Issued API key for user %d (%s, role=%s)", user.ID, user.Email, user.Role)
	fmt.Println(rawKey)
}
