package model

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/pkg/db"
	"github.com/augeas/BirdSpider/pkg/log"
)

// Clustering là một lần chạy phân cụm trên graph.
// Quan hệ: (seed)-[:SEED_FOR]->(clustering), (cluster)-[:CLUSTERED_BY]->(clustering),
// (user)-[:MEMBER_OF]->(cluster) — thể hiện bằng các bảng bên dưới.
type Clustering struct {
	Model
	ID        uint      `json:"id" gorm:"primaryKey"`
	Timestamp time.Time `json:"timestamp" gorm:"column:timestamp;not null"`
	Criteria  string    `json:"criteria" gorm:"column:criteria;type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (c *Clustering) TableName() string {
	return "clusterings"
}

type Cluster struct {
	Model
	ID           uint      `json:"id" gorm:"primaryKey"`
	ClusteringID uint      `json:"clustering_id" gorm:"column:clustering_id;not null;index"`
	Size         int       `json:"size" gorm:"column:size;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (c *Cluster) TableName() string {
	return "clusters"
}

type ClusterMember struct {
	Model
	ID        uint      `json:"id" gorm:"primaryKey"`
	ClusterID uint      `json:"cluster_id" gorm:"column:cluster_id;not null;uniqueIndex:idx_cluster_member,priority:1"`
	Handle    string    `json:"handle" gorm:"column:handle;type:varchar(255);not null;uniqueIndex:idx_cluster_member,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (m *ClusterMember) TableName() string {
	return "cluster_members"
}

type ClusterSeed struct {
	Model
	ID           uint      `json:"id" gorm:"primaryKey"`
	ClusteringID uint      `json:"clustering_id" gorm:"column:clustering_id;not null;uniqueIndex:idx_cluster_seed,priority:1"`
	Handle       string    `json:"handle" gorm:"column:handle;type:varchar(255);not null;uniqueIndex:idx_cluster_seed,priority:2"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (s *ClusterSeed) TableName() string {
	return "cluster_seeds"
}

func NewClustering(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Clustering, error) {
	return &Clustering{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  mysql,
		},
	}, nil
}

// SaveRun lưu một lần phân cụm: run node, seed links, cluster nodes và membership
func (c *Clustering) SaveRun(ctx context.Context, seeds []string, criteria string, clusters [][]string) (uint, error) {
	gormDb, err := c.Mysql.Db()
	if err != nil {
		return 0, fmt.Errorf("failed to get database connection: %w", err)
	}

	run := Clustering{
		Timestamp: time.Now(),
		Criteria:  criteria,
	}

	c.withRetry(ctx, "save_clustering_run", func() error {
		return gormDb.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&run).Error; err != nil {
				return err
			}

			for _, seed := range seeds {
				seedRow := ClusterSeed{ClusteringID: run.ID, Handle: seed}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seedRow).Error; err != nil {
					return err
				}
			}

			for _, members := range clusters {
				cluster := Cluster{ClusteringID: run.ID, Size: len(members)}
				if err := tx.Create(&cluster).Error; err != nil {
					return err
				}

				memberRows := make([]ClusterMember, 0, len(members))
				for _, handle := range members {
					memberRows = append(memberRows, ClusterMember{ClusterID: cluster.ID, Handle: handle})
				}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(memberRows, 200).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})

	c.Logger.Info(ctx, "Saved clustering run %d with %d clusters", run.ID, len(clusters))
	return run.ID, nil
}
