package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string, logLevel logger.LogLevel) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return nil
}

// AutoMigrate runs database migrations
func AutoMigrate() error {
	log.Println("Running database migrations...")

	err := DB.AutoMigrate(
		&SlackSettings{},
		&LLMSettings{},
		&DetectionSettings{},
		&SensorReading{},
		&HazardZone{},
		&Alert{},
		&AlertEscalation{},
		&DetectionCycle{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// InitializeDefaults creates default records if they don't exist
func InitializeDefaults() error {
	log.Println("Initializing default database records...")

	var count int64
	DB.Model(&SlackSettings{}).Count(&count)
	if count == 0 {
		defaultSlackSettings := &SlackSettings{
			Enabled: false, // Disabled by default until configured
		}
		if err := DB.Create(defaultSlackSettings).Error; err != nil {
			return fmt.Errorf("failed to create default slack settings: %w", err)
		}
		log.Println("Created default Slack settings (disabled)")
	}

	count = 0
	DB.Model(&LLMSettings{}).Count(&count)
	if count == 0 {
		defaultLLMSettings := &LLMSettings{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Enabled: false,
		}
		if err := DB.Create(defaultLLMSettings).Error; err != nil {
			return fmt.Errorf("failed to create default LLM settings: %w", err)
		}
		log.Println("Created default LLM settings (disabled)")
	}

	if _, err := GetOrCreateDetectionSettings(DB); err != nil {
		return fmt.Errorf("failed to create default detection settings: %w", err)
	}

	return nil
}

// GetSlackSettings retrieves Slack settings from the database
func GetSlackSettings() (*SlackSettings, error) {
	var settings SlackSettings
	if err := DB.First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSlackSettings updates Slack settings in the database
func UpdateSlackSettings(settings *SlackSettings) error {
	return DB.Model(&SlackSettings{}).Where("id = ?", settings.ID).Updates(settings).Error
}

// GetLLMSettings retrieves LLM settings from the database
func GetLLMSettings() (*LLMSettings, error) {
	var settings LLMSettings
	if err := DB.First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateLLMSettings updates LLM settings in the database
func UpdateLLMSettings(settings *LLMSettings) error {
	return DB.Model(&LLMSettings{}).Where("id = ?", settings.ID).Updates(settings).Error
}

// GetOrCreateDetectionSettings retrieves or creates detection settings
// (singleton). Accepts a db parameter rather than using the global DB to
// support transaction contexts and easier testing.
func GetOrCreateDetectionSettings(db *gorm.DB) (*DetectionSettings, error) {
	var settings DetectionSettings
	result := db.First(&settings)
	if result.Error == gorm.ErrRecordNotFound {
		settings = *NewDefaultDetectionSettings()
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
	} else if result.Error != nil {
		return nil, result.Error
	}
	return &settings, nil
}

// UpdateDetectionSettings updates detection settings.
// Uses Save() which handles both insert and update operations.
func UpdateDetectionSettings(db *gorm.DB, settings *DetectionSettings) error {
	return db.Save(settings).Error
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
