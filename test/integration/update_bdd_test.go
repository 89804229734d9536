//go:build integration

package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/opencode-personas/internal/config"
	"github.com/eliteGoblin/opencode-personas/internal/domain"
	"github.com/eliteGoblin/opencode-personas/internal/infra"
	"github.com/eliteGoblin/opencode-personas/internal/manifest"
	"github.com/eliteGoblin/opencode-personas/internal/plugin"
	"github.com/eliteGoblin/opencode-personas/internal/usecase"
	"github.com/eliteGoblin/opencode-personas/test/fixtures"
)

var _ = Describe("Upstream update", func() {
	var (
		tmpDir       string
		upstream     *fixtures.FakeUpstream
		cfg          *config.Config
		service      *usecase.PersonaService
		synchronizer *usecase.SynchronizerImpl
	)

	readInstalled := func(path string) string {
		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		return string(data)
	}

	BeforeEach(func() {
		if _, err := exec.LookPath("git"); err != nil {
			Skip("git not installed")
		}

		var err error
		tmpDir, err = os.MkdirTemp("", "personas-integration-*")
		Expect(err).NotTo(HaveOccurred())

		upstream = fixtures.NewFakeUpstream(tmpDir)
		Expect(upstream.Create()).To(Succeed())

		home := filepath.Join(tmpDir, "home")
		cfg = config.Default(home)
		cfg.SourceRepoDir = upstream.CloneDir
		Expect(os.MkdirAll(cfg.PersonasDir, 0755)).To(Succeed())

		// Installed copies of the initial release
		for name, content := range map[string]string{
			"strict": fixtures.DefaultFiles["personas/strict.md"],
			"gopnik": fixtures.DefaultFiles["personas/gopnik.md"],
		} {
			path := filepath.Join(cfg.PersonasDir, name+domain.PersonaFileSuffix)
			Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		}

		logger := zap.NewNop()
		store := infra.NewDirPersonaStore(cfg.PersonasDir, logger)
		service = usecase.NewPersonaService(store, cfg.DiscoveryTTL, domain.PersonaID(cfg.DefaultPersona), logger)
		synchronizer = usecase.NewSynchronizer(
			usecase.SynchronizerConfig{SourceDir: cfg.SourceRepoDir, PullTimeout: cfg.PullTimeout},
			infra.NewGitClient(infra.NewProcessManager(), logger),
			infra.NewFileSystemManager(),
			manifest.NewRegistry(cfg),
			service,
			logger,
		)
		service.Init()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Context("when upstream has not moved", func() {
		It("should report unchanged and install nothing", func() {
			result := synchronizer.Run(context.Background())

			Expect(result.Status).To(Equal(domain.UpdateUnchanged))
			Expect(result.Before).To(Equal(result.After))
			Expect(cfg.PluginTarget).NotTo(BeAnExistingFile())
		})
	})

	Context("when upstream publishes a new revision", func() {
		BeforeEach(func() {
			Expect(upstream.Publish(map[string]string{
				"personas/strict.md": "You are stricter now.\n",
			}, "tighten strict")).To(Succeed())
		})

		It("should pull, install every managed file and reload the active persona", func() {
			_, before, ok := service.ActiveContent()
			Expect(ok).To(BeTrue())
			Expect(before).To(ContainSubstring("No small talk"))

			result := synchronizer.Run(context.Background())

			Expect(result.Status).To(Equal(domain.UpdateApplied))
			Expect(result.Failed).To(BeEmpty())
			Expect(result.Copied).To(ConsistOf("persona:strict", "persona:gopnik", "plugin", "command"))

			published, err := upstream.PublishedRevision()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.After).To(Equal(published))

			Expect(readInstalled(filepath.Join(cfg.PersonasDir, "strict.md"))).To(Equal("You are stricter now.\n"))
			Expect(readInstalled(cfg.PluginTarget)).To(Equal(fixtures.DefaultFiles["src/index.ts"]))
			Expect(readInstalled(filepath.Join(cfg.CommandsDir, "persona.md"))).To(Equal(fixtures.DefaultFiles["commands/persona.md"]))

			id, content, ok := service.ActiveContent()
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal(domain.PersonaID("strict")))
			Expect(content).To(Equal("You are stricter now.\n"))
		})

		It("should be a no-op on the next run", func() {
			Expect(synchronizer.Run(context.Background()).Status).To(Equal(domain.UpdateApplied))
			Expect(synchronizer.Run(context.Background()).Status).To(Equal(domain.UpdateUnchanged))
		})
	})

	Context("when a bundled persona was removed upstream", func() {
		BeforeEach(func() {
			Expect(upstream.Publish(map[string]string{
				"personas/gopnik.md": "",
				"personas/strict.md": "Strict, v2.\n",
			}, "retire gopnik")).To(Succeed())
		})

		It("should install the rest and report a partial update", func() {
			result := synchronizer.Run(context.Background())

			Expect(result.Status).To(Equal(domain.UpdateApplied))
			Expect(result.Partial()).To(BeTrue())
			Expect(result.Failed).To(Equal([]string{"persona:gopnik"}))
			Expect(readInstalled(filepath.Join(cfg.PersonasDir, "strict.md"))).To(Equal("Strict, v2.\n"))

			// The previously installed copy is left alone
			Expect(readInstalled(filepath.Join(cfg.PersonasDir, "gopnik.md"))).To(Equal(fixtures.DefaultFiles["personas/gopnik.md"]))
		})
	})

	Context("when the upstream clone is missing", func() {
		It("should skip without touching git", func() {
			Expect(os.RemoveAll(upstream.CloneDir)).To(Succeed())

			result := synchronizer.Run(context.Background())
			Expect(result.Status).To(Equal(domain.UpdateSkipped))
		})
	})

	Context("when the upstream directory is not a git clone", func() {
		It("should skip", func() {
			Expect(os.RemoveAll(filepath.Join(upstream.CloneDir, ".git"))).To(Succeed())

			result := synchronizer.Run(context.Background())
			Expect(result.Status).To(Equal(domain.UpdateSkipped))
		})
	})

	Context("when a session starts through the plugin", func() {
		It("should update in the background", func() {
			Expect(upstream.Publish(map[string]string{
				"personas/gopnik.md": "Gopnik, v2.\n",
			}, "gopnik v2")).To(Succeed())

			p := plugin.New(plugin.Config{AutoUpdate: true}, service, synchronizer, zap.NewNop())
			p.HandleEvent(domain.HostEvent{Type: domain.EventSessionCreated})

			done := make(chan struct{})
			go func() {
				p.Wait()
				close(done)
			}()
			Eventually(done, 30*time.Second).Should(BeClosed())

			Expect(p.LastUpdate().Status).To(Equal(domain.UpdateApplied))
			Expect(readInstalled(filepath.Join(cfg.PersonasDir, "gopnik.md"))).To(Equal("Gopnik, v2.\n"))

			parts, handled := p.ExecuteCommand(plugin.CommandName, "gopnik")
			Expect(handled).To(BeTrue())
			Expect(parts[0].Text).To(ContainSubstring(`Switched from "strict" to "gopnik"`))
			Expect(p.TransformSystem(nil)).To(Equal([]string{"Gopnik, v2.\n"}))
		})
	})
})
