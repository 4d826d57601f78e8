package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/classcard/internal/config"
	"github.com/stemsi/classcard/internal/database"
	"github.com/stemsi/classcard/internal/logger"
	"github.com/stemsi/classcard/internal/model"
	"github.com/stemsi/classcard/internal/repository"
	"github.com/stemsi/classcard/internal/service"
	"github.com/stemsi/classcard/internal/view"
)

// seedClass describes one sample class and how many students to enroll.
type seedClass struct {
	GradeLevel  string
	MajorCode   string
	GroupNumber int
	Students    int
}

var seedClasses = []seedClass{
	{"X", "RPL", 1, 0},
	{"X", "RPL", 2, 1},
	{"XI", "TKJ", 1, 12},
	{"XII", "TKJ", 2, 24},
}

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
	"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
	"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum",
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Redis is optional here; without it cached cards expire on their own TTL.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, card caches will not be invalidated")
	} else {
		defer rdb.Close()
	}

	classService := service.NewClassService(
		repository.NewClassRepository(pool),
		repository.NewStudentRepository(pool),
		rdb, cfg.CardCacheTTL, log,
	)

	fmt.Println("=== Seeding classes ===")

	nis := 0
	for _, sc := range seedClasses {
		class := &model.Class{GradeLevel: sc.GradeLevel, MajorCode: sc.MajorCode, GroupNumber: sc.GroupNumber}
		if err := classService.Create(ctx, class); err != nil {
			log.Error().Err(err).Str("class", class.DisplayName()).Msg("Failed to create class, skipping")
			continue
		}

		for i := 0; i < sc.Students; i++ {
			nis++
			req := &model.EnrollStudentRequest{
				NIS:  fmt.Sprintf("%05d", nis),
				Name: names[i%len(names)],
			}
			if _, err := classService.EnrollStudent(ctx, class.ID, req); err != nil {
				if errors.Is(err, repository.ErrDuplicateNIS) {
					continue
				}
				log.Error().Err(err).Str("nis", req.NIS).Msg("Failed to enroll student")
			}
		}

		summary, err := classService.Summary(ctx, class.ID)
		if err != nil {
			log.Error().Err(err).Int("class_id", class.ID).Msg("Failed to read back class")
			continue
		}
		fmt.Println(view.SummaryText(view.FromSummary(*summary)))
	}

	fmt.Println("Seed completed!")
}
