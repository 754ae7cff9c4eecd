package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"quote_manager/internal/apperrors"
	"quote_manager/internal/config"
	"quote_manager/internal/models"
	"quote_manager/internal/pricing"
	"quote_manager/internal/redis"
	"quote_manager/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const moduleName = "quote_service"

// Operation names recorded in the calculation history.
const (
	OpCreateQuote    = "create_quote"
	OpAddTask        = "add_task"
	OpUpdateTask     = "update_task"
	OpRemoveTask     = "remove_task"
	OpAddMaterial    = "add_material"
	OpUpdateMaterial = "update_material"
	OpRemoveMaterial = "remove_material"
	OpUpdateCharges  = "update_charges"
	OpRecalculate    = "recalculate"
)

type QuoteService interface {
	CreateQuote(ctx context.Context, input CreateQuoteInput) (models.Quote, error)
	GetQuote(ctx context.Context, quoteID string) (models.Quote, error)
	ListQuotes(ctx context.Context, filter repository.QuoteFilter) ([]models.QuoteSummary, int64, error)
	DeleteQuote(ctx context.Context, quoteID string) error

	AddTask(ctx context.Context, quoteID string, input TaskInput) (models.Task, error)
	UpdateTask(ctx context.Context, taskID string, patch TaskPatch) (models.Task, error)
	RemoveTask(ctx context.Context, taskID string) error

	AddMaterial(ctx context.Context, taskID string, input MaterialInput) (models.MaterialLine, error)
	UpdateMaterial(ctx context.Context, materialID string, patch MaterialPatch) (models.MaterialLine, error)
	RemoveMaterial(ctx context.Context, materialID string) error

	UpdateCharges(ctx context.Context, quoteID string, input ChargesInput) (models.Quote, error)
	UpdateStatus(ctx context.Context, quoteID string, status models.QuoteStatus) (models.Quote, error)
	Recalculate(ctx context.Context, quoteID string) (models.Quote, error)

	GetQuoteSummary(ctx context.Context, quoteID string) (models.QuoteSummary, error)
	GetCalculationHistory(ctx context.Context, quoteID string) ([]models.CalculationHistory, error)
}

// SummaryCache is satisfied by *redis.Client; a nil client disables caching.
type SummaryCache interface {
	SetQuoteSummary(ctx context.Context, summary models.QuoteSummary) error
	GetQuoteSummary(ctx context.Context, quoteID string) (*models.QuoteSummary, error)
	DeleteQuoteSummary(ctx context.Context, quoteID string) error
}

type quoteService struct {
	tx        repository.Transactor
	quotes    repository.QuoteRepository
	customers repository.CustomerRepository
	products  repository.ProductRepository
	settings  repository.PricingSettingRepository
	cache     SummaryCache
	notifier  Notifier
	logger    *logrus.Logger
	now       func() time.Time
}

func NewQuoteService(
	tx repository.Transactor,
	quotes repository.QuoteRepository,
	customers repository.CustomerRepository,
	products repository.ProductRepository,
	settings repository.PricingSettingRepository,
	cache SummaryCache,
	notifier Notifier,
	logger *logrus.Logger,
) QuoteService {
	if cache == nil {
		cache = (*redis.Client)(nil)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &quoteService{
		tx:        tx,
		quotes:    quotes,
		customers: customers,
		products:  products,
		settings:  settings,
		cache:     cache,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// mutate runs the load, mutate, recalculate, save sequence for one quote in
// a single transaction. resolve maps the operation's target to its quote id
// inside the transaction; change validates and applies the structural edit.
func (s *quoteService) mutate(
	ctx context.Context,
	operation string,
	resolve func(tx repository.Tx) (string, error),
	change func(tx repository.Tx, quote *models.Quote) error,
) (*models.Quote, error) {
	var saved *models.Quote
	err := s.tx.Transact(ctx, func(tx repository.Tx) error {
		quoteID, err := resolve(tx)
		if err != nil {
			return err
		}
		quote, err := s.quotes.LoadQuoteForUpdate(tx, quoteID)
		if err != nil {
			return err
		}
		if quote.IsLocked() {
			return apperrors.InvalidState("status", "quote %d is %s and can no longer be edited", quote.SequentialID, quote.Status)
		}
		if err := change(tx, quote); err != nil {
			return err
		}
		if err := s.recalculateAndSave(tx, quote, operation); err != nil {
			return err
		}
		saved = quote
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.refreshSummary(ctx, saved)
	return saved, nil
}

func (s *quoteService) recalculateAndSave(tx repository.Tx, quote *models.Quote, operation string) error {
	recalculated, err := pricing.Recalculate(*quote)
	if err != nil {
		return err
	}
	*quote = recalculated
	if err := s.quotes.SaveQuote(tx, quote); err != nil {
		return err
	}
	return s.quotes.AppendHistory(tx, models.NewCalculationHistory(quote, operation, s.now()))
}

func byQuoteID(quoteID string) func(repository.Tx) (string, error) {
	return func(repository.Tx) (string, error) { return quoteID, nil }
}

func (s *quoteService) byTaskID(taskID string) func(repository.Tx) (string, error) {
	return func(tx repository.Tx) (string, error) { return s.quotes.QuoteIDForTask(tx, taskID) }
}

func (s *quoteService) byMaterialID(materialID string) func(repository.Tx) (string, error) {
	return func(tx repository.Tx) (string, error) { return s.quotes.QuoteIDForMaterial(tx, materialID) }
}

func (s *quoteService) CreateQuote(ctx context.Context, input CreateQuoteInput) (models.Quote, error) {
	input.CustomerID = strings.TrimSpace(input.CustomerID)
	if input.CustomerID == "" {
		return models.Quote{}, apperrors.InvalidState("customer_id", "a quote needs a customer")
	}
	if err := input.ChargesInput.validate(); err != nil {
		return models.Quote{}, err
	}
	for _, t := range input.Tasks {
		if err := t.validate(); err != nil {
			return models.Quote{}, err
		}
	}
	charges, err := s.withDefaults(ctx, input.ChargesInput)
	if err != nil {
		return models.Quote{}, err
	}

	var created *models.Quote
	err = s.tx.Transact(ctx, func(tx repository.Tx) error {
		exists, err := s.customers.Exists(tx, input.CustomerID)
		if err != nil {
			return err
		}
		if !exists {
			return apperrors.NotFound("customer", input.CustomerID)
		}
		seq, err := s.quotes.NextSequentialID(tx)
		if err != nil {
			return err
		}

		quote := &models.Quote{
			SequentialID: seq,
			Status:       models.QuoteDraft,
			CustomerID:   input.CustomerID,
			Notes:        input.Notes,
			Version:      1,
		}
		quote.SetMarkup(models.PercentageMarkup(decimal.Zero))
		charges.apply(quote)
		if err := quote.BeforeCreate(nil); err != nil {
			return err
		}
		for _, in := range input.Tasks {
			task, err := s.buildTask(tx, in)
			if err != nil {
				return err
			}
			quote.AppendTask(task)
		}

		recalculated, err := pricing.Recalculate(*quote)
		if err != nil {
			return err
		}
		*quote = recalculated
		if err := s.quotes.CreateQuote(tx, quote); err != nil {
			return err
		}
		if err := s.quotes.AppendHistory(tx, models.NewCalculationHistory(quote, OpCreateQuote, s.now())); err != nil {
			return err
		}
		created = quote
		return nil
	})
	if err != nil {
		return models.Quote{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"quote_id":      created.ID,
		"sequential_id": created.SequentialID,
		"grand_total":   created.GrandTotal.String(),
	}).Info("quote created")
	s.refreshSummary(ctx, created)
	return *created, nil
}

// withDefaults fills unset charge inputs from the active pricing settings.
func (s *quoteService) withDefaults(ctx context.Context, in ChargesInput) (ChargesInput, error) {
	if in.MarkupPercentage == nil && in.MarkupOverride == nil {
		setting, err := s.setting(ctx, models.SettingDefaultMarkupRate)
		if err != nil {
			return in, err
		}
		if setting != nil {
			if setting.IsPercentage {
				pct := setting.PercentageValue
				in.MarkupPercentage = &pct
			} else {
				fixed := setting.FixedAmount
				in.MarkupOverride = &fixed
			}
		}
	}
	if in.ComplexityCharge == nil {
		setting, err := s.setting(ctx, models.SettingDefaultComplexityCharge)
		if err != nil {
			return in, err
		}
		if setting != nil {
			charge := setting.FixedAmount
			in.ComplexityCharge = &charge
		}
	}
	return in, in.validate()
}

func (s *quoteService) setting(ctx context.Context, name string) (*models.PricingSetting, error) {
	setting, err := s.settings.GetSetting(ctx, name)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return setting, err
}

func (s *quoteService) buildTask(tx repository.Tx, in TaskInput) (models.Task, error) {
	task := models.Task{
		Description:  strings.TrimSpace(in.Description),
		LaborPrice:   in.LaborPrice,
		MaterialMode: in.MaterialMode,
	}
	task.SwitchMode(in.MaterialMode, in.EstimatedMaterialCost)
	for _, m := range in.Materials {
		line, err := s.buildMaterial(tx, m)
		if err != nil {
			return models.Task{}, err
		}
		task.AppendMaterial(line)
	}
	return task, nil
}

func (s *quoteService) buildMaterial(tx repository.Tx, in MaterialInput) (models.MaterialLine, error) {
	line := models.MaterialLine{
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Notes:     in.Notes,
	}
	if in.UnitPrice != nil {
		line.UnitPrice = *in.UnitPrice
	}
	if in.ProductID != nil {
		product, err := s.products.GetActive(tx, *in.ProductID)
		if err != nil {
			return models.MaterialLine{}, err
		}
		if in.UnitPrice == nil {
			line.UnitPrice = product.UnitPrice
		}
		if line.Notes == "" {
			line.Notes = product.Name
		}
	}
	return line, nil
}

func (s *quoteService) GetQuote(ctx context.Context, quoteID string) (models.Quote, error) {
	quote, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return models.Quote{}, err
	}
	if err := pricing.Verify(*quote); err != nil {
		s.logger.WithFields(logrus.Fields{"quote_id": quoteID}).Warn(err.Error())
	}
	return *quote, nil
}

func (s *quoteService) ListQuotes(ctx context.Context, filter repository.QuoteFilter) ([]models.QuoteSummary, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperrors.InvalidState("status", "unknown quote status %q", filter.Status)
	}
	quotes, total, err := s.quotes.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	summaries := make([]models.QuoteSummary, 0, len(quotes))
	for i := range quotes {
		summaries = append(summaries, quotes[i].Summary())
	}
	return summaries, total, nil
}

func (s *quoteService) DeleteQuote(ctx context.Context, quoteID string) error {
	err := s.tx.Transact(ctx, func(tx repository.Tx) error {
		quote, err := s.quotes.LoadQuoteForUpdate(tx, quoteID)
		if err != nil {
			return err
		}
		if quote.IsLocked() {
			return apperrors.InvalidState("status", "accepted quote %d cannot be deleted", quote.SequentialID)
		}
		return s.quotes.DeleteQuote(tx, quoteID)
	})
	if err != nil {
		return err
	}
	s.evictSummary(ctx, "DeleteQuote", quoteID)
	return nil
}

func (s *quoteService) AddTask(ctx context.Context, quoteID string, input TaskInput) (models.Task, error) {
	if err := input.validate(); err != nil {
		return models.Task{}, err
	}
	var taskID string
	quote, err := s.mutate(ctx, OpAddTask, byQuoteID(quoteID), func(tx repository.Tx, quote *models.Quote) error {
		task, err := s.buildTask(tx, input)
		if err != nil {
			return err
		}
		taskID = quote.AppendTask(task).ID
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return *quote.FindTask(taskID), nil
}

func (s *quoteService) UpdateTask(ctx context.Context, taskID string, patch TaskPatch) (models.Task, error) {
	quote, err := s.mutate(ctx, OpUpdateTask, s.byTaskID(taskID), func(tx repository.Tx, quote *models.Quote) error {
		task := quote.FindTask(taskID)
		if task == nil {
			return apperrors.NotFound("task", taskID)
		}
		if err := patch.validate(task.MaterialMode); err != nil {
			return err
		}
		patch.apply(task)
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return *quote.FindTask(taskID), nil
}

func (s *quoteService) RemoveTask(ctx context.Context, taskID string) error {
	_, err := s.mutate(ctx, OpRemoveTask, s.byTaskID(taskID), func(tx repository.Tx, quote *models.Quote) error {
		if !quote.RemoveTask(taskID) {
			return apperrors.NotFound("task", taskID)
		}
		return nil
	})
	return err
}

func (s *quoteService) AddMaterial(ctx context.Context, taskID string, input MaterialInput) (models.MaterialLine, error) {
	if err := input.validate(); err != nil {
		return models.MaterialLine{}, err
	}
	var materialID string
	quote, err := s.mutate(ctx, OpAddMaterial, s.byTaskID(taskID), func(tx repository.Tx, quote *models.Quote) error {
		task := quote.FindTask(taskID)
		if task == nil {
			return apperrors.NotFound("task", taskID)
		}
		if task.MaterialMode != models.Itemized {
			return apperrors.InvalidState("material_mode", "task %s is %s; material lines need an itemized task", taskID, task.MaterialMode)
		}
		line, err := s.buildMaterial(tx, input)
		if err != nil {
			return err
		}
		materialID = task.AppendMaterial(line).ID
		return nil
	})
	if err != nil {
		return models.MaterialLine{}, err
	}
	_, line := quote.FindMaterial(materialID)
	return *line, nil
}

func (s *quoteService) UpdateMaterial(ctx context.Context, materialID string, patch MaterialPatch) (models.MaterialLine, error) {
	if err := patch.validate(); err != nil {
		return models.MaterialLine{}, err
	}
	quote, err := s.mutate(ctx, OpUpdateMaterial, s.byMaterialID(materialID), func(tx repository.Tx, quote *models.Quote) error {
		_, line := quote.FindMaterial(materialID)
		if line == nil {
			return apperrors.NotFound("material", materialID)
		}
		patch.apply(line)
		return nil
	})
	if err != nil {
		return models.MaterialLine{}, err
	}
	_, line := quote.FindMaterial(materialID)
	return *line, nil
}

func (s *quoteService) RemoveMaterial(ctx context.Context, materialID string) error {
	_, err := s.mutate(ctx, OpRemoveMaterial, s.byMaterialID(materialID), func(tx repository.Tx, quote *models.Quote) error {
		task, _ := quote.FindMaterial(materialID)
		if task == nil || !task.RemoveMaterial(materialID) {
			return apperrors.NotFound("material", materialID)
		}
		return nil
	})
	return err
}

func (s *quoteService) UpdateCharges(ctx context.Context, quoteID string, input ChargesInput) (models.Quote, error) {
	if err := input.validate(); err != nil {
		return models.Quote{}, err
	}
	quote, err := s.mutate(ctx, OpUpdateCharges, byQuoteID(quoteID), func(tx repository.Tx, quote *models.Quote) error {
		input.apply(quote)
		return nil
	})
	if err != nil {
		return models.Quote{}, err
	}
	return *quote, nil
}

func (s *quoteService) Recalculate(ctx context.Context, quoteID string) (models.Quote, error) {
	quote, err := s.mutate(ctx, OpRecalculate, byQuoteID(quoteID), func(repository.Tx, *models.Quote) error {
		return nil
	})
	if err != nil {
		return models.Quote{}, err
	}
	return *quote, nil
}

// UpdateStatus changes only the status; stored totals are written back as loaded.
func (s *quoteService) UpdateStatus(ctx context.Context, quoteID string, status models.QuoteStatus) (models.Quote, error) {
	if !status.Valid() {
		return models.Quote{}, apperrors.InvalidState("status", "unknown quote status %q", status)
	}

	var (
		saved    *models.Quote
		previous models.QuoteStatus
	)
	err := s.tx.Transact(ctx, func(tx repository.Tx) error {
		quote, err := s.quotes.LoadQuoteForUpdate(tx, quoteID)
		if err != nil {
			return err
		}
		previous = quote.Status
		quote.Status = status
		if err := s.quotes.SaveQuote(tx, quote); err != nil {
			return err
		}
		saved = quote
		return nil
	})
	if err != nil {
		return models.Quote{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"quote_id": quoteID,
		"from":     previous,
		"to":       status,
	}).Info("quote status changed")
	s.refreshSummary(ctx, saved)
	if status == models.QuoteSent && previous != models.QuoteSent {
		s.notifySent(ctx, saved)
	}
	return *saved, nil
}

func (s *quoteService) GetQuoteSummary(ctx context.Context, quoteID string) (models.QuoteSummary, error) {
	cached, err := s.cache.GetQuoteSummary(ctx, quoteID)
	switch {
	case err == nil:
		// A cached entry is served only while it matches the stored version.
		version, err := s.quotes.Version(ctx, quoteID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				s.evictSummary(ctx, "GetQuoteSummary", quoteID)
			}
			return models.QuoteSummary{}, err
		}
		if cached.Version == version {
			return *cached, nil
		}
	case !errors.Is(err, redis.ErrCacheMiss):
		config.LogError(s.logger, moduleName, "GetQuoteSummary", "read quote summary cache", logrus.Fields{"quote_id": quoteID}, err)
	}

	quote, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return models.QuoteSummary{}, err
	}
	s.refreshSummary(ctx, quote)
	return quote.Summary(), nil
}

func (s *quoteService) GetCalculationHistory(ctx context.Context, quoteID string) ([]models.CalculationHistory, error) {
	if _, err := s.quotes.Get(ctx, quoteID); err != nil {
		return nil, err
	}
	return s.quotes.History(ctx, quoteID)
}

// refreshSummary runs after commit; a cache failure never fails the operation.
// When the write fails the entry is evicted so the next read reloads it.
func (s *quoteService) refreshSummary(ctx context.Context, quote *models.Quote) {
	if err := s.cache.SetQuoteSummary(ctx, quote.Summary()); err != nil {
		config.LogError(s.logger, moduleName, "refreshSummary", "write quote summary cache", logrus.Fields{"quote_id": quote.ID}, err)
		s.evictSummary(ctx, "refreshSummary", quote.ID)
	}
}

func (s *quoteService) evictSummary(ctx context.Context, funcName, quoteID string) {
	if err := s.cache.DeleteQuoteSummary(ctx, quoteID); err != nil {
		config.LogError(s.logger, moduleName, funcName, "evict quote summary", logrus.Fields{"quote_id": quoteID}, err)
	}
}

func (s *quoteService) notifySent(ctx context.Context, quote *models.Quote) {
	if s.notifier == nil {
		return
	}
	customer, err := s.customers.GetByID(ctx, quote.CustomerID)
	if err != nil {
		config.LogError(s.logger, moduleName, "notifySent", "load customer", logrus.Fields{"quote_id": quote.ID}, err)
		return
	}
	if err := s.notifier.QuoteSent(ctx, *quote, *customer); err != nil {
		config.LogError(s.logger, moduleName, "notifySent", "send quote notification", logrus.Fields{"quote_id": quote.ID, "customer_id": customer.ID}, err)
	}
}
