// Markov clustering (MCL) trên ma trận kề của graph follow.
// Thuật toán luân phiên expansion (bình phương ma trận) và inflation
// (luỹ thừa từng phần tử rồi chuẩn hoá cột) cho đến khi hội tụ;
// các hàng còn khối lượng sau hội tụ chính là các cụm.

package cluster

import (
	"math"
	"sort"
	"strings"
)

const (
	defaultInflation  = 1.5
	defaultEpsilon    = 1e-4
	defaultMaxRounds  = 100
	minExtractedNodes = 3
	minLabeledSize    = 4
)

type Engine struct {
	Inflation float64
	Epsilon   float64
	MaxRounds int
}

func NewEngine() *Engine {
	return &Engine{
		Inflation: defaultInflation,
		Epsilon:   defaultEpsilon,
		MaxRounds: defaultMaxRounds,
	}
}

// Clusterize chạy MCL trên ma trận kề vuông và trả về các cụm
// dưới dạng danh sách index. Ma trận đầu vào không bị sửa.
func (e *Engine) Clusterize(adjacency [][]float64) [][]int {
	n := len(adjacency)
	if n == 0 {
		return nil
	}

	matrix := make([][]float64, n)
	for i := range adjacency {
		matrix[i] = make([]float64, n)
		copy(matrix[i], adjacency[i])
		// Self-loop để random walk không dao động theo chu kỳ
		matrix[i][i] = 1
	}
	normalizeColumns(matrix)

	for round := 0; round < e.MaxRounds; round++ {
		next := square(matrix)
		inflate(next, e.Inflation)
		normalizeColumns(next)

		if delta(matrix, next) < e.Epsilon {
			matrix = next
			break
		}
		matrix = next
	}

	return extract(matrix, e.Epsilon)
}

// normalizeColumns chia mỗi cột cho tổng của nó.
// Cột toàn 0 (node cô lập) được giữ nguyên thay vì chia cho 0.
func normalizeColumns(matrix [][]float64) {
	n := len(matrix)
	for col := 0; col < n; col++ {
		var sum float64
		for row := 0; row < n; row++ {
			sum += matrix[row][col]
		}
		if sum == 0 {
			continue
		}
		for row := 0; row < n; row++ {
			matrix[row][col] /= sum
		}
	}
}

func square(matrix [][]float64) [][]float64 {
	n := len(matrix)
	result := make([][]float64, n)
	for i := 0; i < n; i++ {
		result[i] = make([]float64, n)
		for k := 0; k < n; k++ {
			v := matrix[i][k]
			if v == 0 {
				continue
			}
			row := matrix[k]
			for j := 0; j < n; j++ {
				result[i][j] += v * row[j]
			}
		}
	}
	return result
}

func inflate(matrix [][]float64, power float64) {
	for i := range matrix {
		for j := range matrix[i] {
			v := math.Pow(matrix[i][j], power)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			matrix[i][j] = v
		}
	}
}

// delta là độ lệch chuẩn của thay đổi từng phần tử giữa hai vòng lặp.
// Ma trận đã ổn định khi thay đổi gần như đồng đều trên mọi phần tử.
func delta(a, b [][]float64) float64 {
	n := len(a)
	if n == 0 {
		return 0
	}

	total := float64(n * n)
	var sum, sumSquares float64
	for i := range a {
		for j := range a[i] {
			d := math.Abs(a[i][j] - b[i][j])
			sum += d
			sumSquares += d * d
		}
	}

	mean := sum / total
	variance := sumSquares/total - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// extract đọc các cụm từ ma trận đã hội tụ: mỗi hàng attractor
// (còn khối lượng trên nhiều cột) là một cụm gồm các cột đó.
// Cột dưới ngưỡng hội tụ coi như đã về 0.
func extract(matrix [][]float64, cutoff float64) [][]int {
	var clusters [][]int
	for i := range matrix {
		var members []int
		for j, v := range matrix[i] {
			if v > cutoff {
				members = append(members, j)
			}
		}
		if len(members) >= minExtractedNodes {
			clusters = append(clusters, members)
		}
	}
	return clusters
}

// LabelClusters đổi cụm index thành cụm handle, loại cụm trùng nhau
// và cụm quá nhỏ để đáng lưu
func LabelClusters(clusters [][]int, handles []string) [][]string {
	seen := make(map[string]bool)
	var labeled [][]string

	for _, members := range clusters {
		names := make([]string, 0, len(members))
		for _, idx := range members {
			if idx >= 0 && idx < len(handles) {
				names = append(names, handles[idx])
			}
		}
		if len(names) < minLabeledSize {
			continue
		}

		sort.Strings(names)
		key := strings.Join(names, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		labeled = append(labeled, names)
	}
	return labeled
}
