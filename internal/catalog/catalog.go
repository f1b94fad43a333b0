package catalog

import (
	"errors"
	"time"

	"rewardsystem/internal/model"
)

var ErrTaskNotFound = errors.New("任务不存在")

// Task 任务定义
// 不落库：小额任务是固定清单，大额任务按 (用户, 日期) 确定性推导，
// 会话创建时会把用到的字段冻结成快照
type Task struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	RewardMills  int64  `json:"reward"`
	CooldownSecs int    `json:"cooldown"`
	Kind         string `json:"kind"`
	Tier         string `json:"tier"`
}

// 固定的小额任务清单，进程启动即不再变化
var microTasks = []Task{
	{ID: 1, Title: "Web Visit 15s", RewardMills: 100, CooldownSecs: 15, Kind: model.TaskKindWeb, Tier: model.TaskTierMicro},
	{ID: 2, Title: "Web Visit 30s", RewardMills: 100, CooldownSecs: 30, Kind: model.TaskKindWeb, Tier: model.TaskTierMicro},
	{ID: 3, Title: "Visit Website 50s", RewardMills: 100, CooldownSecs: 50, Kind: model.TaskKindWeb, Tier: model.TaskTierMicro},
	{ID: 4, Title: "Watch Short Video", RewardMills: 100, CooldownSecs: 45, Kind: model.TaskKindVideo, Tier: model.TaskTierMicro},
	{ID: 5, Title: "Join Telegram Channel", RewardMills: 100, CooldownSecs: 60, Kind: model.TaskKindWeb, Tier: model.TaskTierMicro},
	{ID: 6, Title: "Visit Website 1 Min", RewardMills: 150, CooldownSecs: 60, Kind: model.TaskKindWeb, Tier: model.TaskTierMicro},
}

// 大额任务模板池，每天按用户轮换
var macroPool = []Task{
	{Title: "Watch Video 2 Min", RewardMills: 300, CooldownSecs: 180, Kind: model.TaskKindVideo},
	{Title: "Interactive Ad Visit", RewardMills: 250, CooldownSecs: 120, Kind: model.TaskKindWeb},
	{Title: "Watch Rewarded Video", RewardMills: 350, CooldownSecs: 240, Kind: model.TaskKindVideo},
	{Title: "Sponsored Page 90s", RewardMills: 200, CooldownSecs: 90, Kind: model.TaskKindWeb},
	{Title: "Watch Video Playlist", RewardMills: 400, CooldownSecs: 300, Kind: model.TaskKindVideo},
}

const (
	macroIDBase   = 1_000_000
	macroMaxSlots = 8
)

// Resolver 任务目录解析器
// 纯函数集合，无任何副作用，每次请求都重新解析（跨天不缓存）
type Resolver struct {
	macroCount int
}

func NewResolver(macroCount int) *Resolver {
	if macroCount < 1 {
		macroCount = 1
	}
	if macroCount > macroMaxSlots {
		macroCount = macroMaxSlots
	}
	return &Resolver{macroCount: macroCount}
}

// dayOrdinal UTC 日序号（Unix 纪元起的天数）
func dayOrdinal(day time.Time) int64 {
	return day.UTC().Unix() / 86400
}

// Resolve 返回用户某天可见的全部任务，小额在前、顺序固定，大额按槽位在后
//
// 【关键点】大额任务的确定性
// seed = 日序号 + 用户ID，第 i 个槽位取 pool[(seed+i) mod len(pool)]，
// 合成ID = macroIDBase + 日序号*macroMaxSlots + 槽位。
// 同一 (用户, 日期) 反复调用结果完全一致，无需持久化即可幂等重解析；
// 不同日期的合成ID互不重叠，前一天的会话不会误配到当天的任务
func (r *Resolver) Resolve(userID int64, day time.Time) []Task {
	ordinal := dayOrdinal(day)
	seed := ordinal + userID

	out := make([]Task, 0, len(microTasks)+r.macroCount)
	out = append(out, microTasks...)

	for i := 0; i < r.macroCount; i++ {
		tpl := macroPool[int((seed+int64(i))%int64(len(macroPool)))]
		tpl.ID = macroIDBase + ordinal*macroMaxSlots + int64(i)
		tpl.Tier = model.TaskTierMacro
		out = append(out, tpl)
	}
	return out
}

// ByID 按ID查某天对某用户有效的任务
func (r *Resolver) ByID(userID int64, day time.Time, taskID int64) (Task, error) {
	for _, task := range r.Resolve(userID, day) {
		if task.ID == taskID {
			return task, nil
		}
	}
	return Task{}, ErrTaskNotFound
}
