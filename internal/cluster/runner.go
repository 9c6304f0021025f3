package cluster

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/internal/model"
	"github.com/augeas/BirdSpider/pkg/db"
	"github.com/augeas/BirdSpider/pkg/log"
)

// TaskClusterGraph phân cụm graph hiện có và lưu kết quả
const TaskClusterGraph = "cluster_graph"

type ClusterGraphArgs struct {
	Seeds    []string `json:"seeds,omitempty"`
	Criteria string   `json:"criteria,omitempty"`
}

// Runner nối ba bước của một lần phân cụm: truy vấn cạnh,
// chạy MCL, lưu kết quả vào graph
type Runner struct {
	Config *cfg.Config
	Logger log.Logger
	Mysql  *db.Mysql
	Graph  *model.Graph
	Engine *Engine
}

func NewRunner(config *cfg.Config, logger log.Logger, mysql *db.Mysql, graph *model.Graph) *Runner {
	return &Runner{
		Config: config,
		Logger: logger,
		Mysql:  mysql,
		Graph:  graph,
		Engine: NewEngine(),
	}
}

// Run phân cụm toàn bộ graph theo một tiêu chí và lưu lại kết quả.
// Trả về id của clustering run, hoặc 0 khi graph chưa đủ dữ liệu.
func (r *Runner) Run(ctx context.Context, seeds []string, criteria string) (uint, error) {
	if criteria == "" {
		criteria = CriteriaMutualFollows
	}

	pairs, err := edgePairs(ctx, r.Mysql, criteria)
	if err != nil {
		return 0, err
	}

	handles, matrix := buildMatrix(pairs)
	if len(handles) == 0 {
		r.Logger.Warn(ctx, "No %s pairs in graph, skipping clustering", criteria)
		return 0, nil
	}
	r.Logger.Info(ctx, "Clustering %d users over %d %s pairs", len(handles), len(pairs), criteria)

	clusters := LabelClusters(r.Engine.Clusterize(matrix), handles)
	if len(clusters) == 0 {
		r.Logger.Warn(ctx, "MCL found no clusters worth saving")
		return 0, nil
	}

	runID, err := r.Graph.ClusteringMd.SaveRun(ctx, seeds, criteria, clusters)
	if err != nil {
		return 0, err
	}
	r.Logger.Info(ctx, "Clustering run %d saved %d clusters", runID, len(clusters))
	return runID, nil
}

// HandleClusterGraph cho phép phân cụm chạy như một task trên queue
func (r *Runner) HandleClusterGraph(ctx context.Context, args json.RawMessage) error {
	var clusterArgs ClusterGraphArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &clusterArgs); err != nil {
			return fmt.Errorf("invalid cluster_graph args: %w", err)
		}
	}
	_, err := r.Run(ctx, clusterArgs.Seeds, clusterArgs.Criteria)
	return err
}
