// Package follows maintains the directed follow graph between accounts.
package follows

import "time"

// Edge records that the follower account follows the target account.
type Edge struct {
	ID         string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	FollowerID string    `gorm:"column:follower_account_id;size:36;not null;uniqueIndex:idx_follow_edges_pair,priority:1;index:idx_follow_edges_follower_created,priority:1" json:"follower_id"`
	TargetID   string    `gorm:"column:target_account_id;size:36;not null;uniqueIndex:idx_follow_edges_pair,priority:2" json:"target_id"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index:idx_follow_edges_follower_created,priority:2" json:"created_at"`
}

// TableName binds Edge to its table.
func (Edge) TableName() string {
	return "follow_edges"
}

// FollowResult reports the edge and whether this call inserted it.
type FollowResult struct {
	Edge    Edge
	Created bool
}
