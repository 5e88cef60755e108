package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/rcliao/memory-engine/internal/embedding"
	"github.com/rcliao/memory-engine/internal/model"
	"github.com/rcliao/memory-engine/internal/profile"
	"github.com/rcliao/memory-engine/internal/store"
)

// KnownProfile is a profile database found on disk.
type KnownProfile struct {
	Name     string `json:"name"`
	Memories int    `json:"memories"`
	Size     string `json:"size"`
	Current  bool   `json:"current,omitempty"`
	Error    string `json:"error,omitempty"`
}

// EmbeddingInfo describes the embedding service.
type EmbeddingInfo struct {
	Provider string `json:"provider"`
	Status   string `json:"status"`
	Dims     int    `json:"dims,omitempty"`
	Error    string `json:"error,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

// ProfileInfo describes the running profile and its neighbors.
type ProfileInfo struct {
	Current   profile.Profile   `json:"current"`
	DataDir   string            `json:"data_dir"`
	Embedding EmbeddingInfo     `json:"embedding"`
	Profiles  []KnownProfile    `json:"profiles"`
	ToolUsage []model.ToolUsage `json:"tool_usage"`
}

// ProfileInfo lists every profile database with its memory count.
func (e *Engine) ProfileInfo(ctx context.Context) (*ProfileInfo, error) {
	info := &ProfileInfo{
		Current: e.profile,
		DataDir: e.dataDir,
		Embedding: EmbeddingInfo{
			Provider: e.embed.Provider(),
			Status:   string(e.embed.Status()),
			Dims:     e.embed.Dims(),
			Warning:  embedding.ProviderWarning(e.embed.Provider()),
		},
		Profiles: []KnownProfile{},
	}
	if err := e.embed.LastError(); err != nil {
		info.Embedding.Error = err.Error()
	}

	paths, err := filepath.Glob(filepath.Join(e.profilesDir, "*.db"))
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".db")
		kp := KnownProfile{Name: name, Current: name == e.profile.Name}

		var n int
		switch name {
		case e.profile.Name:
			n, err = e.local.CountMemories(ctx)
		case profile.Global:
			n, err = e.global.CountMemories(ctx)
		default:
			n, err = store.CountMemoriesAt(ctx, path)
		}
		if err != nil {
			kp.Error = err.Error()
		}
		kp.Memories = n
		if fi, err := os.Stat(path); err == nil {
			kp.Size = humanize.Bytes(uint64(fi.Size()))
		}
		info.Profiles = append(info.Profiles, kp)
	}
	sort.Slice(info.Profiles, func(i, j int) bool { return info.Profiles[i].Name < info.Profiles[j].Name })

	if info.ToolUsage, err = e.local.ToolUsage(ctx); err != nil {
		return nil, err
	}
	return info, nil
}

// RecordToolCall counts a dispatched tool call in the profile store.
func (e *Engine) RecordToolCall(ctx context.Context, name string) error {
	return e.local.RecordToolCall(ctx, name, e.now())
}
