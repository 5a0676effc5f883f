package entity

import (
	"context"
	"time"

	"backoffice/bizerror"
	"backoffice/common"
	"backoffice/domain"
	"backoffice/jsondoc"
	"backoffice/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	ErrCorrelationIDInUse = &bizerror.ErrConflict{Message: "Correlation id already in use"}
	ErrEmailInUse         = &bizerror.ErrConflict{Message: "Email already in use"}

	CreateEndUserFunc  = CreateEndUser
	DetailEndUserFunc  = DetailEndUser
	QueryEndUsersFunc  = QueryEndUsers
	CreateBusinessFunc = CreateBusiness
	DetailBusinessFunc = DetailBusiness
	QueryBusinessFunc  = QueryBusinesses
	CreateUserFunc     = CreateUser
	DetailUserFunc     = DetailUser
	QueryUsersFunc     = QueryUsers
)

type EndUserCreation struct {
	CorrelationID  *string          `json:"correlationId" binding:"omitempty,lte=255"`
	FirstName      string           `json:"firstName" binding:"required,lte=255"`
	LastName       string           `json:"lastName" binding:"required,lte=255"`
	Email          string           `json:"email" binding:"omitempty,email"`
	Phone          string           `json:"phone" binding:"lte=64"`
	DateOfBirth    string           `json:"dateOfBirth" binding:"lte=32"`
	AvatarURL      string           `json:"avatarUrl" binding:"omitempty,url"`
	AdditionalInfo jsondoc.Document `json:"additionalInfo"`
}

type BusinessCreation struct {
	CorrelationID          *string          `json:"correlationId" binding:"omitempty,lte=255"`
	CompanyName            string           `json:"companyName" binding:"required,lte=255"`
	RegistrationNumber     string           `json:"registrationNumber" binding:"lte=255"`
	LegalForm              string           `json:"legalForm" binding:"lte=255"`
	CountryOfIncorporation string           `json:"countryOfIncorporation" binding:"lte=64"`
	Website                string           `json:"website" binding:"omitempty,url"`
	AdditionalInfo         jsondoc.Document `json:"additionalInfo"`
}

type UserCreation struct {
	FirstName string `json:"firstName" binding:"required,lte=255"`
	LastName  string `json:"lastName" binding:"required,lte=255"`
	Email     string `json:"email" binding:"required,email"`
	Roles     string `json:"roles" binding:"lte=255"`
}

func CreateEndUser(ctx context.Context, c *EndUserCreation) (*domain.EndUser, error) {
	now := time.Now()
	u := &domain.EndUser{
		ID:             common.NextId(idWorker),
		CorrelationID:  c.CorrelationID,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		Phone:          c.Phone,
		DateOfBirth:    c.DateOfBirth,
		AvatarURL:      c.AvatarURL,
		ApprovalState:  domain.ApprovalStateNew,
		AdditionalInfo: c.AdditionalInfo,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := create(ctx, u, ErrCorrelationIDInUse); err != nil {
		return nil, err
	}
	return u, nil
}

func DetailEndUser(ctx context.Context, id types.ID) (*domain.EndUser, error) {
	u := domain.EndUser{}
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func QueryEndUsers(ctx context.Context) ([]domain.EndUser, error) {
	users := []domain.EndUser{}
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).Order("created_at DESC, id DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func CreateBusiness(ctx context.Context, c *BusinessCreation) (*domain.Business, error) {
	now := time.Now()
	b := &domain.Business{
		ID:                     common.NextId(idWorker),
		CorrelationID:          c.CorrelationID,
		CompanyName:            c.CompanyName,
		RegistrationNumber:     c.RegistrationNumber,
		LegalForm:              c.LegalForm,
		CountryOfIncorporation: c.CountryOfIncorporation,
		Website:                c.Website,
		ApprovalState:          domain.ApprovalStateNew,
		AdditionalInfo:         c.AdditionalInfo,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := create(ctx, b, ErrCorrelationIDInUse); err != nil {
		return nil, err
	}
	return b, nil
}

func DetailBusiness(ctx context.Context, id types.ID) (*domain.Business, error) {
	b := domain.Business{}
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func QueryBusinesses(ctx context.Context) ([]domain.Business, error) {
	businesses := []domain.Business{}
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).Order("created_at DESC, id DESC").Find(&businesses).Error; err != nil {
		return nil, err
	}
	return businesses, nil
}

func CreateUser(ctx context.Context, c *UserCreation) (*domain.User, error) {
	u := &domain.User{
		ID:        common.NextId(idWorker),
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Roles:     c.Roles,
		CreatedAt: time.Now(),
	}
	if err := create(ctx, u, ErrEmailInUse); err != nil {
		return nil, err
	}
	return u, nil
}

func DetailUser(ctx context.Context, id types.ID) (*domain.User, error) {
	u := domain.User{}
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func QueryUsers(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).Order("first_name ASC, last_name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// create inserts record, a unique index rejecting it is reported as conflict.
func create(ctx context.Context, record interface{}, conflict error) error {
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).Create(record).Error; err != nil {
		if persistence.IsUniqueViolation(err) {
			return conflict
		}
		return err
	}
	return nil
}

func notFound(err error) error {
	if gorm.IsRecordNotFoundError(err) {
		return bizerror.ErrNotFound
	}
	return err
}
