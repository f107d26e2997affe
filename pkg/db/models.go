package db

import (
	"time"

	"gorm.io/gorm"
)

// Role values for User.Role
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	gorm.Model
	AdmissionNumber string `gorm:"unique"`
	Name            string
	Class           string
	PasswordHash    string
	Role            string `gorm:"default:'user'"`
	Email           string // set for admins that sign in with Google
	ImageURL        string

	// Running totals, maintained incrementally by the lifecycle manager
	// and the credit/print ledgers. Never recomputed from scratch on read.
	TotalUsage    int64   // accumulated session duration in milliseconds
	TotalUsageFee float64 // lifetime usage fees
	TotalPrint    int     // lifetime printed pages
	TotalPrintFee float64 // lifetime print fees
	CreditBalance float64 // lifetime credits
	NetBalance    float64 // credits - usage fees - print fees

	LastLoginAt  *time.Time
	LastLoginLab string
}

type Session struct {
	gorm.Model
	UserID           uint
	User             User   `gorm:"foreignKey:UserID;references:ID"`
	LabID            string // lab name the seat belongs to
	AdmissionNumber  string // denormalized snapshot for search
	Purpose          string
	Online           bool // billed by elapsed time; false posts a zero fee
	StartTime        time.Time
	EndTime          *time.Time // nil marks the session as active
	Duration         int64      // milliseconds, computed at end
	UsageFee         float64
	InactivityCount  int
	LastActivityTime time.Time
}

type Lab struct {
	gorm.Model
	ComputerID string `gorm:"unique"` // physical machine identifier
	Name       string // lab label; many machines may share one name
	Status     bool   // true while a session is active in this lab
	LastActive time.Time
}

type Credit struct {
	gorm.Model
	UserID uint
	User   User `gorm:"foreignKey:UserID;references:ID"`
	Amount float64
	Date   time.Time
	Notes  string
}

type Print struct {
	gorm.Model
	UserID     uint
	User       User `gorm:"foreignKey:UserID;references:ID"`
	Pages      int
	Amount     float64
	Date       time.Time
	PageByUser bool // whether the user supplied the paper
}

type Purpose struct {
	gorm.Model
	Name   string `gorm:"unique"`
	Active bool   `gorm:"default:true"`
}
