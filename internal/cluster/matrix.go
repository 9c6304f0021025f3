// Dựng ma trận kề cho MCL từ bảng follows

package cluster

import (
	"context"
	"fmt"

	"github.com/augeas/BirdSpider/pkg/db"
)

// Tiêu chí chọn cạnh cho một lần phân cụm
const (
	// CriteriaMutualFollows nối hai user follow lẫn nhau
	CriteriaMutualFollows = "mutual_follows"
	// CriteriaSharedFriends nối hai user cùng follow một user thứ ba
	CriteriaSharedFriends = "shared_friends"
)

type edgePair struct {
	A string `gorm:"column:a"`
	B string `gorm:"column:b"`
}

// edgePairs lấy các cặp user liên kết theo tiêu chí đã chọn
func edgePairs(ctx context.Context, mysql *db.Mysql, criteria string) ([]edgePair, error) {
	gormDb, err := mysql.Db()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	var query string
	switch criteria {
	case CriteriaSharedFriends:
		query = `
			SELECT DISTINCT f1.source_handle AS a, f2.source_handle AS b
			FROM follows f1
			JOIN follows f2 ON f1.target_handle = f2.target_handle
			WHERE f1.source_handle < f2.source_handle`
	case CriteriaMutualFollows:
		query = `
			SELECT f1.source_handle AS a, f1.target_handle AS b
			FROM follows f1
			JOIN follows f2
			  ON f1.source_handle = f2.target_handle
			 AND f1.target_handle = f2.source_handle
			WHERE f1.source_handle < f1.target_handle`
	default:
		return nil, fmt.Errorf("unknown clustering criteria: %s", criteria)
	}

	var pairs []edgePair
	result := gormDb.WithContext(ctx).Raw(query).Scan(&pairs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query %s pairs: %w", criteria, result.Error)
	}
	return pairs, nil
}

// buildMatrix đổi danh sách cặp thành ma trận kề đối xứng.
// Trả về danh sách handle theo đúng thứ tự index của ma trận.
func buildMatrix(pairs []edgePair) ([]string, [][]float64) {
	index := make(map[string]int)
	var handles []string
	idx := func(handle string) int {
		if i, ok := index[handle]; ok {
			return i
		}
		i := len(handles)
		index[handle] = i
		handles = append(handles, handle)
		return i
	}

	for _, pair := range pairs {
		idx(pair.A)
		idx(pair.B)
	}

	n := len(handles)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	for _, pair := range pairs {
		i, j := index[pair.A], index[pair.B]
		matrix[i][j] = 1
		matrix[j][i] = 1
	}
	return handles, matrix
}
