package executor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"vmigrate/internal/db"
	"vmigrate/internal/inventory"
	"vmigrate/internal/migration"
	"vmigrate/internal/model"
	"vmigrate/internal/platform"
	"vmigrate/internal/repository"
	"vmigrate/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStrategy struct {
	steps func(req *migration.Request) []migration.Step
}

func (s *fakeStrategy) Steps(req *migration.Request) []migration.Step {
	return s.steps(req)
}

func okStep(name string, weight int) migration.Step {
	return migration.Step{
		Name:   name,
		Weight: weight,
		Run:    func(ctx context.Context) error { return nil },
	}
}

type fixture struct {
	jobs *repository.JobRepository
	logs *repository.LogRepository
	hub  *stream.Hub
	exec *Executor
	src  model.Provider
	dst  model.Provider
}

func setup(t *testing.T, strategy migration.Strategy) *fixture {
	t.Helper()
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "test.db")))

	provRepo := repository.NewProviderRepository()
	src := model.Provider{Name: "vc", Kind: model.ProviderVCenter, APIURL: "https://vc", Username: "u", Secret: "s"}
	require.NoError(t, provRepo.Add(&src))
	dst := model.Provider{Name: "pve", Kind: model.ProviderProxmox, APIURL: "https://pve", Username: "t", Secret: "s"}
	require.NoError(t, provRepo.Add(&dst))

	factory := func(model.Provider) (platform.Client, error) {
		return nil, errors.New("no network in tests")
	}

	registry := migration.NewRegistry()
	if strategy != nil {
		registry.Register(model.ProviderVCenter, model.ProviderProxmox, strategy)
	}

	f := &fixture{
		jobs: repository.NewJobRepository(),
		logs: repository.NewLogRepository(),
		hub:  stream.NewHub(64),
		src:  src,
		dst:  dst,
	}
	f.exec = New(f.jobs, f.logs, provRepo,
		inventory.NewCache(factory, time.Second), f.hub, registry)
	return f
}

func (f *fixture) createJob(t *testing.T, vmName string) model.Job {
	t.Helper()
	jobs, err := f.jobs.CreateBatch([]model.Job{{
		VMName:                vmName,
		SourceProviderID:      f.src.ID,
		DestinationProviderID: f.dst.ID,
		Status:                model.JobQueued,
	}})
	require.NoError(t, err)
	return jobs[0]
}

func waitTerminal(t *testing.T, repo *repository.JobRepository, id uint) model.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.GetByID(id)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d did not reach a terminal state", id)
	return model.Job{}
}

func TestJobCompletes(t *testing.T) {
	f := setup(t, &fakeStrategy{steps: func(*migration.Request) []migration.Step {
		return []migration.Step{okStep("step one", 60), okStep("step two", 40)}
	}})

	job := f.createJob(t, "vm-1")
	f.exec.Dispatch(job)

	done := waitTerminal(t, f.jobs, job.ID)
	assert.Equal(t, model.JobCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)

	lines, err := f.logs.ReadAll(job.ID)
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0].Message, "Starting migration workflow")
	assert.Equal(t, "Migration workflow completed.", lines[len(lines)-1].Message)
}

func TestStepFailureFreezesProgress(t *testing.T) {
	f := setup(t, &fakeStrategy{steps: func(*migration.Request) []migration.Step {
		return []migration.Step{
			okStep("step one", 30),
			{Name: "step two", Weight: 70, Run: func(ctx context.Context) error {
				return errors.New("disk export rejected")
			}},
		}
	}})

	job := f.createJob(t, "vm-2")
	f.exec.Dispatch(job)

	done := waitTerminal(t, f.jobs, job.ID)
	assert.Equal(t, model.JobFailed, done.Status)
	assert.Equal(t, 30, done.Progress, "progress stays at the last reached value")

	lines, err := f.logs.ReadAll(job.ID)
	require.NoError(t, err)
	var failure string
	for _, line := range lines {
		if strings.HasPrefix(line.Message, "Failed:") {
			failure = line.Message
		}
	}
	assert.Contains(t, failure, "disk export rejected")
}

func TestFailureDoesNotAffectOtherJobs(t *testing.T) {
	f := setup(t, &fakeStrategy{steps: func(req *migration.Request) []migration.Step {
		if req.VMName == "vm-2" {
			return []migration.Step{
				okStep("step one", 50),
				{Name: "step two", Weight: 50, Run: func(ctx context.Context) error {
					return errors.New("boom")
				}},
			}
		}
		return []migration.Step{okStep("step one", 50), okStep("step two", 50)}
	}})

	good := f.createJob(t, "vm-1")
	bad := f.createJob(t, "vm-2")
	f.exec.Dispatch(good)
	f.exec.Dispatch(bad)

	goodDone := waitTerminal(t, f.jobs, good.ID)
	badDone := waitTerminal(t, f.jobs, bad.ID)

	assert.Equal(t, model.JobCompleted, goodDone.Status)
	assert.Equal(t, 100, goodDone.Progress)
	assert.Equal(t, model.JobFailed, badDone.Status)
	assert.Less(t, badDone.Progress, 100)
}

func TestPanickingStepFailsOnlyItsJob(t *testing.T) {
	f := setup(t, &fakeStrategy{steps: func(*migration.Request) []migration.Step {
		return []migration.Step{{Name: "step one", Weight: 100, Run: func(ctx context.Context) error {
			panic("strategy bug")
		}}}
	}})

	job := f.createJob(t, "vm-1")
	f.exec.Dispatch(job)

	done := waitTerminal(t, f.jobs, job.ID)
	assert.Equal(t, model.JobFailed, done.Status)
}

func TestUnknownProviderPairFailsJob(t *testing.T) {
	f := setup(t, nil)

	job := f.createJob(t, "vm-1")
	f.exec.Dispatch(job)

	done := waitTerminal(t, f.jobs, job.ID)
	assert.Equal(t, model.JobFailed, done.Status)

	lines, err := f.logs.ReadAll(job.ID)
	require.NoError(t, err)
	assert.Contains(t, lines[len(lines)-1].Message, "no migration path")
}

func TestProgressEventsAreMonotonic(t *testing.T) {
	f := setup(t, &fakeStrategy{steps: func(*migration.Request) []migration.Step {
		// Weights deliberately over-sum; progress must clamp at 100.
		return []migration.Step{
			okStep("a", 40), okStep("b", 40), okStep("c", 40),
		}
	}})

	job := f.createJob(t, "vm-1")
	subID, events := f.hub.Subscribe(job.ID)
	defer f.hub.Unsubscribe(job.ID, subID)

	f.exec.Dispatch(job)

	last := -1
	for ev := range events {
		if ev.Type == stream.EventProgress {
			assert.GreaterOrEqual(t, ev.Progress, last)
			assert.LessOrEqual(t, ev.Progress, 100)
			last = ev.Progress
		}
		if ev.Type == stream.EventDone {
			assert.Equal(t, string(model.JobCompleted), ev.Message)
			break
		}
	}
	assert.Equal(t, 100, last)
}

func TestCompletedRowImpliesFullLog(t *testing.T) {
	f := setup(t, &fakeStrategy{steps: func(*migration.Request) []migration.Step {
		return []migration.Step{okStep("one", 50), okStep("two", 50)}
	}})

	// The first read that observes completed must already find the final log
	// line; the executor persists it before flipping the row terminal.
	for _, vm := range []string{"vm-1", "vm-2", "vm-3"} {
		job := f.createJob(t, vm)
		f.exec.Dispatch(job)

		deadline := time.Now().Add(5 * time.Second)
		for {
			require.True(t, time.Now().Before(deadline),
				"job %d did not complete", job.ID)

			row, err := f.jobs.GetByID(job.ID)
			require.NoError(t, err)
			if row.Status != model.JobCompleted {
				time.Sleep(time.Millisecond)
				continue
			}

			lines, err := f.logs.ReadAll(job.ID)
			require.NoError(t, err)
			require.NotEmpty(t, lines)
			assert.Equal(t, "Migration workflow completed.", lines[len(lines)-1].Message)
			break
		}
	}
}

func TestProgressNeverFullWhileRunning(t *testing.T) {
	entered := make(chan struct{})
	gate := make(chan struct{})
	f := setup(t, &fakeStrategy{steps: func(*migration.Request) []migration.Step {
		return []migration.Step{
			okStep("transfer", 100),
			{Name: "finalize", Weight: 0, Run: func(ctx context.Context) error {
				close(entered)
				<-gate
				return nil
			}},
		}
	}})

	job := f.createJob(t, "vm-1")
	f.exec.Dispatch(job)

	<-entered
	row, err := f.jobs.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, row.Status)
	assert.Less(t, row.Progress, 100,
		"full progress is written only together with the completed status")

	close(gate)
	done := waitTerminal(t, f.jobs, job.ID)
	assert.Equal(t, model.JobCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
}

func TestLogSequenceIsDense(t *testing.T) {
	f := setup(t, &fakeStrategy{steps: func(*migration.Request) []migration.Step {
		return []migration.Step{okStep("one", 50), okStep("two", 50)}
	}})

	job := f.createJob(t, "vm-1")
	f.exec.Dispatch(job)
	waitTerminal(t, f.jobs, job.ID)

	lines, err := f.logs.ReadAll(job.ID)
	require.NoError(t, err)
	for i, line := range lines {
		assert.Equal(t, i, line.Seq)
	}
}
