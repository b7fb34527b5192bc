package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/examsecure/internal/config"
	"github.com/stemsi/examsecure/internal/database"
	"github.com/stemsi/examsecure/internal/logger"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/repository"
	"github.com/stemsi/examsecure/internal/service"
)

// Seeds demo student accounts, puts them on an admin's roster and optionally
// assigns them to an exam.
func main() {
	var (
		adminEmail = flag.String("admin", "", "Email of the admin whose roster receives the students (required)")
		count      = flag.Int("count", 50, "Number of students to create")
		password   = flag.String("password", "student123", "Password for every seeded account")
		domain     = flag.String("domain", "example.com", "Email domain of the seeded accounts")
		examCode   = flag.String("exam", "", "Join code of an exam to assign the students to")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if *adminEmail == "" {
		log.Fatal().Msg("-admin is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)

	authService := service.NewAuthService(cfg, userRepo, repository.NewSessionRepository(rdb))
	rosterService := service.NewRosterService(repository.NewRosterRepository(pool), assignmentRepo, examRepo, log)

	admin, err := userRepo.GetByEmail(ctx, *adminEmail, model.RoleAdmin)
	if err != nil {
		log.Fatal().Err(err).Str("email", *adminEmail).Msg("Admin not found")
	}

	var exam *model.Exam
	if *examCode != "" {
		exam, err = examRepo.GetByCode(ctx, *examCode)
		if err != nil {
			log.Fatal().Err(err).Str("exam_code", *examCode).Msg("Exam not found")
		}
		if exam.OwnerID != admin.ID {
			log.Fatal().Str("exam_code", *examCode).Msg("Exam is not owned by the admin")
		}
	}

	fmt.Printf("=== Seeding %d Students ===\n", *count)

	created, rostered := 0, 0
	for i := 1; i <= *count; i++ {
		email := fmt.Sprintf("student%03d@%s", i, *domain)

		_, err := authService.Register(ctx, &model.RegisterStudentRequest{
			Email:    email,
			Name:     fmt.Sprintf("Student %03d", i),
			Password: *password,
		})
		switch {
		case err == nil:
			created++
		case errors.Is(err, service.ErrAlreadyExists):
		default:
			fmt.Printf("Error creating %s: %v\n", email, err)
			continue
		}

		if _, err := rosterService.Add(ctx, admin.ID, email); err == nil {
			rostered++
		} else if !errors.Is(err, service.ErrAlreadyExists) {
			fmt.Printf("Error adding %s to roster: %v\n", email, err)
		}

		if exam != nil {
			if _, err := rosterService.AssignStudent(ctx, admin.ID, exam.ID, email); err != nil && !errors.Is(err, service.ErrAlreadyExists) {
				fmt.Printf("Error assigning %s: %v\n", email, err)
			}
		}

		if i%10 == 0 {
			fmt.Printf("Processed %d students...\n", i)
		}
	}

	fmt.Printf("\nSeed completed! Created %d accounts, added %d roster entries.\n", created, rostered)
}
