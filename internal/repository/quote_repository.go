package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quote_manager/internal/apperrors"
	"quote_manager/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleVersion is wrapped in a ConflictOnSave error when the quote row
// changed after it was loaded.
var ErrStaleVersion = errors.New("quote version changed since it was loaded")

type QuoteFilter struct {
	Status     models.QuoteStatus
	CustomerID string
	Limit      int
	Offset     int
}

type QuoteRepository interface {
	CreateQuote(tx Tx, quote *models.Quote) error
	LoadQuoteForUpdate(tx Tx, quoteID string) (*models.Quote, error)
	SaveQuote(tx Tx, quote *models.Quote) error
	DeleteQuote(tx Tx, quoteID string) error
	NextSequentialID(tx Tx) (int64, error)
	QuoteIDForTask(tx Tx, taskID string) (string, error)
	QuoteIDForMaterial(tx Tx, materialID string) (string, error)
	AppendHistory(tx Tx, history *models.CalculationHistory) error

	Get(ctx context.Context, quoteID string) (*models.Quote, error)
	Version(ctx context.Context, quoteID string) (int64, error)
	List(ctx context.Context, filter QuoteFilter) ([]models.Quote, int64, error)
	History(ctx context.Context, quoteID string) ([]models.CalculationHistory, error)
}

type quoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) QuoteRepository {
	return &quoteRepository{db: db}
}

func (r *quoteRepository) CreateQuote(tx Tx, quote *models.Quote) error {
	db, err := tx.conn()
	if err != nil {
		return err
	}
	if err := db.Omit(clause.Associations).Create(quote).Error; err != nil {
		return fmt.Errorf("failed to create quote: %w", err)
	}
	return syncTasks(db, quote)
}

func (r *quoteRepository) LoadQuoteForUpdate(tx Tx, quoteID string) (*models.Quote, error) {
	db, err := tx.conn()
	if err != nil {
		return nil, err
	}

	var quote models.Quote
	if err := tx.forUpdate(db).Where("id = ?", quoteID).First(&quote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("quote", quoteID)
		}
		return nil, fmt.Errorf("failed to load quote %s: %w", quoteID, err)
	}

	tasks, err := loadTasks(db, quoteID)
	if err != nil {
		return nil, err
	}
	quote.Tasks = tasks
	return &quote, nil
}

func loadTasks(db *gorm.DB, quoteID string) ([]models.Task, error) {
	var tasks []models.Task
	err := db.Where("quote_id = ?", quoteID).
		Order("sort_order ASC").
		Preload("Materials", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks of quote %s: %w", quoteID, err)
	}
	return tasks, nil
}

// SaveQuote writes the quote row and synchronises its task and material rows
// with the aggregate. The row is only updated when its version still matches
// quote.Version; on success quote.Version is advanced.
func (r *quoteRepository) SaveQuote(tx Tx, quote *models.Quote) error {
	db, err := tx.conn()
	if err != nil {
		return err
	}

	now := time.Now()
	res := db.Model(&models.Quote{}).
		Where("id = ? AND version = ?", quote.ID, quote.Version).
		Updates(map[string]interface{}{
			"status":             quote.Status,
			"customer_id":        quote.CustomerID,
			"notes":              quote.Notes,
			"markup_mode":        quote.MarkupMode,
			"markup_percentage":  quote.MarkupPercentage,
			"markup_override":    quote.MarkupOverride,
			"complexity_charge":  quote.ComplexityCharge,
			"subtotal_tasks":     quote.SubtotalTasks,
			"subtotal_materials": quote.SubtotalMaterials,
			"markup_charge":      quote.MarkupCharge,
			"grand_total":        quote.GrandTotal,
			"version":            quote.Version + 1,
			"updated_at":         now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to save quote %s: %w", quote.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.Quote{}).Where("id = ?", quote.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check quote %s: %w", quote.ID, err)
		}
		if count == 0 {
			return apperrors.NotFound("quote", quote.ID)
		}
		return apperrors.Conflict(ErrStaleVersion)
	}
	quote.Version++
	quote.UpdatedAt = now

	return syncTasks(db, quote)
}

func syncTasks(db *gorm.DB, quote *models.Quote) error {
	var storedTaskIDs []string
	if err := db.Model(&models.Task{}).Where("quote_id = ?", quote.ID).Pluck("id", &storedTaskIDs).Error; err != nil {
		return fmt.Errorf("failed to list tasks of quote %s: %w", quote.ID, err)
	}

	keep := make(map[string]bool, len(quote.Tasks))
	taskIDs := make([]string, 0, len(quote.Tasks))
	for _, t := range quote.Tasks {
		if t.ID != "" {
			keep[t.ID] = true
			taskIDs = append(taskIDs, t.ID)
		}
	}
	stored := make(map[string]bool, len(storedTaskIDs))
	var removed []string
	for _, id := range storedTaskIDs {
		stored[id] = true
		if !keep[id] {
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		if err := db.Where("task_id IN ?", removed).Delete(&models.MaterialLine{}).Error; err != nil {
			return fmt.Errorf("failed to delete materials of removed tasks: %w", err)
		}
		if err := db.Where("id IN ?", removed).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("failed to delete removed tasks: %w", err)
		}
	}

	storedMaterials := map[string]bool{}
	if len(taskIDs) > 0 {
		var ids []string
		if err := db.Model(&models.MaterialLine{}).Where("task_id IN ?", taskIDs).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to list materials of quote %s: %w", quote.ID, err)
		}
		for _, id := range ids {
			storedMaterials[id] = true
		}
	}

	keepMaterials := map[string]bool{}
	for i := range quote.Tasks {
		task := &quote.Tasks[i]
		task.QuoteID = quote.ID
		if err := upsert(db, task, stored[task.ID]); err != nil {
			return fmt.Errorf("failed to save task %s: %w", task.ID, err)
		}
		for j := range task.Materials {
			line := &task.Materials[j]
			line.TaskID = task.ID
			if err := upsert(db, line, storedMaterials[line.ID]); err != nil {
				return fmt.Errorf("failed to save material %s: %w", line.ID, err)
			}
			keepMaterials[line.ID] = true
		}
	}

	var orphaned []string
	for id := range storedMaterials {
		if !keepMaterials[id] {
			orphaned = append(orphaned, id)
		}
	}
	if len(orphaned) > 0 {
		if err := db.Where("id IN ?", orphaned).Delete(&models.MaterialLine{}).Error; err != nil {
			return fmt.Errorf("failed to delete removed materials: %w", err)
		}
	}
	return nil
}

func upsert(db *gorm.DB, value interface{}, exists bool) error {
	if exists {
		return db.Omit(clause.Associations).Save(value).Error
	}
	return db.Omit(clause.Associations).Create(value).Error
}

// DeleteQuote removes the quote with its tasks, materials and history.
func (r *quoteRepository) DeleteQuote(tx Tx, quoteID string) error {
	db, err := tx.conn()
	if err != nil {
		return err
	}

	taskIDs := db.Model(&models.Task{}).Select("id").Where("quote_id = ?", quoteID)
	steps := []struct {
		what string
		run  func() error
	}{
		{"materials", func() error { return db.Where("task_id IN (?)", taskIDs).Delete(&models.MaterialLine{}).Error }},
		{"tasks", func() error { return db.Where("quote_id = ?", quoteID).Delete(&models.Task{}).Error }},
		{"history", func() error { return db.Where("quote_id = ?", quoteID).Delete(&models.CalculationHistory{}).Error }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return deleteError(quoteID, step.what, err)
		}
	}

	res := db.Where("id = ?", quoteID).Delete(&models.Quote{})
	if res.Error != nil {
		return deleteError(quoteID, "quote", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("quote", quoteID)
	}
	return nil
}

func deleteError(quoteID, what string, err error) error {
	if isForeignKeyViolation(err) {
		return apperrors.InvalidState("quote", "quote %s is still referenced: %v", quoteID, err)
	}
	return fmt.Errorf("failed to delete %s of quote %s: %w", what, quoteID, err)
}

// NextSequentialID advances the quote counter inside tx. Numbers taken by a
// rolled back transaction are never handed out twice on PostgreSQL because
// the counter row stays locked until commit.
func (r *quoteRepository) NextSequentialID(tx Tx) (int64, error) {
	db, err := tx.conn()
	if err != nil {
		return 0, err
	}

	res := db.Model(&models.QuoteSequence{}).
		Where("name = ?", models.QuoteSequenceName).
		Update("value", gorm.Expr("value + ?", 1))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to advance quote sequence: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var maxID int64
		if err := db.Model(&models.Quote{}).Select("COALESCE(MAX(sequential_id), 0)").Scan(&maxID).Error; err != nil {
			return 0, fmt.Errorf("failed to read highest quote number: %w", err)
		}
		seq := models.QuoteSequence{Name: models.QuoteSequenceName, Value: maxID + 1}
		if err := db.Create(&seq).Error; err != nil {
			return 0, fmt.Errorf("failed to create quote sequence: %w", err)
		}
		return seq.Value, nil
	}

	var seq models.QuoteSequence
	if err := db.Where("name = ?", models.QuoteSequenceName).First(&seq).Error; err != nil {
		return 0, fmt.Errorf("failed to read quote sequence: %w", err)
	}
	return seq.Value, nil
}

func (r *quoteRepository) QuoteIDForTask(tx Tx, taskID string) (string, error) {
	db, err := tx.conn()
	if err != nil {
		return "", err
	}
	var task models.Task
	if err := db.Select("id", "quote_id").Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.NotFound("task", taskID)
		}
		return "", fmt.Errorf("failed to look up task %s: %w", taskID, err)
	}
	return task.QuoteID, nil
}

func (r *quoteRepository) QuoteIDForMaterial(tx Tx, materialID string) (string, error) {
	db, err := tx.conn()
	if err != nil {
		return "", err
	}
	var quoteIDs []string
	err = db.Model(&models.Task{}).
		Joins("JOIN material_lines ON material_lines.task_id = tasks.id").
		Where("material_lines.id = ?", materialID).
		Limit(1).
		Pluck("tasks.quote_id", &quoteIDs).Error
	if err != nil {
		return "", fmt.Errorf("failed to look up material %s: %w", materialID, err)
	}
	if len(quoteIDs) == 0 {
		return "", apperrors.NotFound("material", materialID)
	}
	return quoteIDs[0], nil
}

func (r *quoteRepository) AppendHistory(tx Tx, history *models.CalculationHistory) error {
	db, err := tx.conn()
	if err != nil {
		return err
	}
	if err := db.Create(history).Error; err != nil {
		return fmt.Errorf("failed to record calculation history: %w", err)
	}
	return nil
}

func (r *quoteRepository) Get(ctx context.Context, quoteID string) (*models.Quote, error) {
	db := r.db.WithContext(ctx)
	var quote models.Quote
	if err := db.Where("id = ?", quoteID).First(&quote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("quote", quoteID)
		}
		return nil, fmt.Errorf("failed to get quote %s: %w", quoteID, err)
	}
	tasks, err := loadTasks(db, quoteID)
	if err != nil {
		return nil, err
	}
	quote.Tasks = tasks
	return &quote, nil
}

// Version reads only the stored version of a quote.
func (r *quoteRepository) Version(ctx context.Context, quoteID string) (int64, error) {
	var versions []int64
	err := r.db.WithContext(ctx).Model(&models.Quote{}).Where("id = ?", quoteID).Limit(1).Pluck("version", &versions).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read version of quote %s: %w", quoteID, err)
	}
	if len(versions) == 0 {
		return 0, apperrors.NotFound("quote", quoteID)
	}
	return versions[0], nil
}

func (r *quoteRepository) List(ctx context.Context, filter QuoteFilter) ([]models.Quote, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Quote{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count quotes: %w", err)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var quotes []models.Quote
	err := query.Order("sequential_id DESC").
		Preload("Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Find(&quotes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quotes: %w", err)
	}
	return quotes, total, nil
}

func (r *quoteRepository) History(ctx context.Context, quoteID string) ([]models.CalculationHistory, error) {
	var history []models.CalculationHistory
	err := r.db.WithContext(ctx).Where("quote_id = ?", quoteID).Order("id ASC").Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get calculation history of quote %s: %w", quoteID, err)
	}
	return history, nil
}
