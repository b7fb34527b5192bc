package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/stemsi/examsecure/internal/client"
	"github.com/stemsi/examsecure/internal/config"
	"github.com/stemsi/examsecure/internal/logger"
	"github.com/stemsi/examsecure/internal/model"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.LoadClient()

	// ─── Initialize Logger ─────────────────────────────────────────────
	// The terminal is in raw mode during the exam, so logs go to a file.
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot open log file %s: %v\n", cfg.LogFile, err)
		os.Exit(1)
	}
	defer logFile.Close()
	log := logger.SetupTo(logFile, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	api := client.New(cfg.ServerURL)
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Secure Exam ===")

	// ─── Login ─────────────────────────────────────────────────────────
	fmt.Print("Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		return
	}

	login, err := api.Login(ctx, email, string(bytePassword))
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		return
	}
	log.Info().Int("student_id", login.User.ID).Msg("Logged in")

	// ─── Exam Lookup ───────────────────────────────────────────────────
	code := ""
	if len(os.Args) > 1 {
		code = os.Args[1]
	} else {
		fmt.Print("Exam code: ")
		code, _ = reader.ReadString('\n')
	}
	code = strings.TrimSpace(code)

	exam, err := api.LookupExam(ctx, code)
	if err != nil {
		fmt.Printf("Cannot open exam: %v\n", err)
		return
	}

	switch exam.Availability {
	case model.AvailabilityUpcoming:
		fmt.Println("This exam has not started yet.")
		return
	case model.AvailabilityClosed:
		fmt.Println("This exam has ended.")
		return
	}

	fmt.Printf("\n%s\n%d questions, %d minutes, %d points.\n", exam.Title, len(exam.Questions), exam.DurationMinutes, exam.TotalPoints)
	fmt.Printf("Keep this terminal focused and at least %dx%d. Leaving it counts as a warning; more than %d warnings submits the exam.\n",
		cfg.MinCols, cfg.MinRows, cfg.MaxWarnings)
	fmt.Print("Press Enter to start.")
	_, _ = reader.ReadString('\n')

	// ─── Exam Session ──────────────────────────────────────────────────
	res, err := runExam(ctx, cfg, api, login.User.ID, exam, log)
	switch {
	case errors.Is(err, client.ErrAlreadySubmitted):
		fmt.Println("You have already submitted this exam.")
		return
	case err != nil:
		log.Error().Err(err).Msg("Exam session ended without a result")
		fmt.Printf("Exam session ended: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nSubmitted. Score %d/%d (%.2f%%)\n", res.Score, res.TotalPoints, res.Percentage)
}
