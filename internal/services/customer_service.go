package services

import (
	"context"
	"strings"

	"quote_manager/internal/apperrors"
	"quote_manager/internal/models"
	"quote_manager/internal/repository"
)

type CustomerService interface {
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
}

type customerService struct {
	customerRepo repository.CustomerRepository
}

func NewCustomerService(customerRepo repository.CustomerRepository) CustomerService {
	return &customerService{customerRepo: customerRepo}
}

func (s *customerService) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return apperrors.InvalidState("name", "customer name must not be empty")
	}
	customer.Phone = strings.TrimSpace(customer.Phone)
	return s.customerRepo.Create(ctx, customer)
}

func (s *customerService) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	return s.customerRepo.GetByID(ctx, id)
}

type ProductService interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

type productService struct {
	productRepo repository.ProductRepository
}

func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productService{productRepo: productRepo}
}

func (s *productService) CreateProduct(ctx context.Context, product *models.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return apperrors.InvalidState("name", "product name must not be empty")
	}
	if err := checkAmount("unit_price", product.UnitPrice); err != nil {
		return err
	}
	if product.Unit == "" {
		product.Unit = "unit"
	}
	product.IsActive = true
	return s.productRepo.Create(ctx, product)
}

func (s *productService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.productRepo.GetByID(ctx, id)
}
