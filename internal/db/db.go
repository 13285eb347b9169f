package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"solafeed/internal/models"
)

type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open 连接数据库并完成迁移和种子数据
func Open(opts Options, logger zerolog.Logger) (*gorm.DB, error) {
	log := logger.With().Str("component", "db").Logger()

	db, err := gorm.Open(postgres.Open(opts.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	log.Info().Msg("database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info().Msg("database migration completed")

	if err := seedTopics(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Profile{},
		&models.Country{},
		&models.City{},
		&models.DestinationTag{},
		&models.Place{},
		&models.SavedPlace{},
		&models.CommunityTopic{},
		&models.CommunityThread{},
		&models.CommunityReply{},
		&models.CommunityReaction{},
		&models.BlockedUser{},
		&models.Trip{},
		&models.TripStop{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

func seedTopics(db *gorm.DB, log zerolog.Logger) error {
	// 检查是否已有话题数据
	var count int64
	if err := db.Model(&models.CommunityTopic{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count topics: %w", err)
	}
	if count > 0 {
		log.Debug().Msg("topics already seeded, skipping")
		return nil
	}

	topics := []models.CommunityTopic{
		{Label: "Safety", Slug: "safety", SortOrder: 1},
		{Label: "Accommodation", Slug: "accommodation", SortOrder: 2},
		{Label: "Getting around", Slug: "transport", SortOrder: 3},
		{Label: "Food & drink", Slug: "food", SortOrder: 4},
		{Label: "Meetups", Slug: "meetups", SortOrder: 5},
		{Label: "Itineraries", Slug: "itineraries", SortOrder: 6},
	}
	for _, topic := range topics {
		if err := db.Create(&topic).Error; err != nil {
			log.Warn().Err(err).Str("topic", topic.Slug).Msg("failed to create topic")
		}
	}
	log.Info().Int("topics", len(topics)).Msg("initial topics created")
	return nil
}
