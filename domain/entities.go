package domain

import (
	"time"

	"backoffice/jsondoc"

	"github.com/fundwit/go-commons/types"
)

type EndUser struct {
	ID             types.ID         `json:"id"`
	CorrelationID  *string          `json:"correlationId" gorm:"unique_index"`
	FirstName      string           `json:"firstName"`
	LastName       string           `json:"lastName"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
	DateOfBirth    string           `json:"dateOfBirth"`
	AvatarURL      string           `json:"avatarUrl" gorm:"column:avatar_url"`
	ApprovalState  string           `json:"approvalState"`
	AdditionalInfo jsondoc.Document `json:"additionalInfo" sql:"type:TEXT"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *EndUser) TableName() string {
	return "end_users"
}

type Business struct {
	ID                     types.ID         `json:"id"`
	CorrelationID          *string          `json:"correlationId" gorm:"unique_index"`
	CompanyName            string           `json:"companyName"`
	RegistrationNumber     string           `json:"registrationNumber"`
	LegalForm              string           `json:"legalForm"`
	CountryOfIncorporation string           `json:"countryOfIncorporation"`
	Website                string           `json:"website"`
	ApprovalState          string           `json:"approvalState"`
	AdditionalInfo         jsondoc.Document `json:"additionalInfo" sql:"type:TEXT"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Business) TableName() string {
	return "businesses"
}

// User is a backoffice operator, runtimes are assigned to users.
type User struct {
	ID        types.ID  `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email" gorm:"unique_index"`
	Roles     string    `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) TableName() string {
	return "users"
}

const (
	ApprovalStateNew = "NEW"
)
