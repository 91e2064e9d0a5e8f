package models

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID            int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	RecipeID      int64     `gorm:"not null;index" json:"recipe_id"`
	Recipe        *Recipe   `gorm:"foreignKey:RecipeID" json:"-"`
	AuthorID      int64     `gorm:"not null;index" json:"author_id"`
	Author        *User     `gorm:"foreignKey:AuthorID" json:"-"`
	Rating        int       `gorm:"not null;check:chk_reviews_rating,rating >= 1 AND rating <= 5" json:"rating"`
	Body          string    `gorm:"column:review;type:text" json:"review"`
	DateSubmitted time.Time `gorm:"not null" json:"date_submitted"`
	DateModified  time.Time `gorm:"not null;index" json:"date_modified"`
}

func (Review) TableName() string {
	return "reviews"
}

// ReviewLike records that UserID likes ReviewID.
type ReviewLike struct {
	ReviewID int64   `gorm:"primaryKey;autoIncrement:false" json:"review_id"`
	UserID   int64   `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Review   *Review `gorm:"foreignKey:ReviewID" json:"-"`
	User     *User   `gorm:"foreignKey:UserID" json:"-"`
}

func (ReviewLike) TableName() string {
	return "review_likes"
}
