package models

// Gender values accepted by the users table.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
)

// User is a platform account. Followers and Following are denormalized
// counters over user_follows and are only ever changed by atomic SQL
// expressions or a set-based recount.
type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string `gorm:"not null;uniqueIndex:idx_users_name" json:"name"`
	Gender    string `gorm:"not null;check:chk_users_gender,gender IN ('Male','Female')" json:"gender"`
	Age       int    `gorm:"not null;check:chk_users_age,age > 0" json:"age"`
	Password  string `gorm:"not null" json:"-"`
	IsDeleted bool   `gorm:"not null;default:false;index" json:"is_deleted"`
	Followers int64  `gorm:"not null;default:0;check:chk_users_followers,followers >= 0" json:"followers"`
	Following int64  `gorm:"not null;default:0;check:chk_users_following,following >= 0" json:"following"`
}

func (User) TableName() string {
	return "users"
}

// UserFollow is a directed edge: FollowerID observes FolloweeID.
type UserFollow struct {
	FollowerID int64 `gorm:"primaryKey;autoIncrement:false;check:chk_user_follows_self,follower_id <> followee_id" json:"follower_id"`
	FolloweeID int64 `gorm:"primaryKey;autoIncrement:false;index" json:"followee_id"`
	Follower   *User `gorm:"foreignKey:FollowerID" json:"-"`
	Followee   *User `gorm:"foreignKey:FolloweeID" json:"-"`
}

func (UserFollow) TableName() string {
	return "user_follows"
}
