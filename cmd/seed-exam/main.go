package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prepdeck/mockexam-backend/internal/config"
	"github.com/prepdeck/mockexam-backend/internal/database"
	"github.com/prepdeck/mockexam-backend/internal/logger"
	"github.com/prepdeck/mockexam-backend/internal/model"
	"github.com/prepdeck/mockexam-backend/internal/repository"
)

// examFixture is the on-disk format consumed by this tool. Questions are
// numbered by their position in the file.
type examFixture struct {
	Title           string `json:"title"`
	Description     *string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	Questions       []struct {
		QuestionText  string  `json:"question_text"`
		OptionA       string  `json:"option_a"`
		OptionB       string  `json:"option_b"`
		OptionC       string  `json:"option_c"`
		CorrectOption string  `json:"correct_option"`
		Explanation   *string `json:"explanation"`
		ExplanationA  *string `json:"explanation_a"`
		ExplanationB  *string `json:"explanation_b"`
		ExplanationC  *string `json:"explanation_c"`
	} `json:"questions"`
}

func main() {
	var fixturePath string
	flag.StringVar(&fixturePath, "file", "fixtures/sample-exam.json", "Path to exam fixture JSON")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	data, err := os.ReadFile(fixturePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", fixturePath).Msg("Failed to read fixture")
	}

	var fixture examFixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse fixture")
	}
	if fixture.Title == "" || fixture.DurationMinutes <= 0 || len(fixture.Questions) == 0 {
		log.Fatal().Msg("Fixture needs a title, a positive duration and at least one question")
	}
	for i, q := range fixture.Questions {
		if !model.Option(q.CorrectOption).Valid() {
			log.Fatal().Int("question", i+1).Str("correct_option", q.CorrectOption).Msg("correct_option must be one of A, B, C")
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	exam := &model.Exam{
		Title:           fixture.Title,
		Description:     fixture.Description,
		DurationMinutes: fixture.DurationMinutes,
		QuestionCount:   len(fixture.Questions),
	}
	if err := examRepo.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	for i, fq := range fixture.Questions {
		question := &model.Question{
			ExamID:        exam.ID,
			QuestionText:  fq.QuestionText,
			OptionA:       fq.OptionA,
			OptionB:       fq.OptionB,
			OptionC:       fq.OptionC,
			CorrectOption: model.Option(fq.CorrectOption),
			OrderNum:      i + 1,
			Explanation:   fq.Explanation,
			ExplanationA:  fq.ExplanationA,
			ExplanationB:  fq.ExplanationB,
			ExplanationC:  fq.ExplanationC,
		}
		if err := questionRepo.Create(ctx, question); err != nil {
			log.Fatal().Err(err).Int("order_num", i+1).Msg("Failed to create question")
		}
	}

	fmt.Printf("Seeded exam %q (%s) with %d questions\n", exam.Title, exam.ID, len(fixture.Questions))
}
