package analysis

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/clock"
	"github.com/fumiya-kume/reposcan/pkg/errors"
)

func contextFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":                 "import app\n\nrun()\n",
		"README.md":               "# demo\n",
		"tests/test_main.py":      "def test_ok():\n    pass\n",
		"node_modules/lib/idx.js": "module.exports = {}\n",
		".hidden.txt":             "secret\n",
		"src/app/config.yaml":     "debug: true\n",
		"assets/logo.png":         "png",
	})
	return root
}

func pythonProfile() types.ProjectLanguageProfile {
	return types.ProjectLanguageProfile{
		PrimaryLanguage: "Python",
		Languages:       []types.LanguageInfo{{Name: "Python", Percentage: 100, FileCount: 2}},
		Frameworks:      []string{},
		BuildTools:      []string{},
		PackageManagers: []string{},
		ProjectType:     types.ProjectTypeGeneral,
	}
}

func fileByPath(files []types.FileInfo, rel string) (types.FileInfo, bool) {
	for _, f := range files {
		if filepath.ToSlash(f.RelativePath) == rel {
			return f, true
		}
	}
	return types.FileInfo{}, false
}

func TestPrepareProjectContext(t *testing.T) {
	root := contextFixture(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	builder := NewContextBuilder(DefaultAnalyzerConfig(), nil)
	builder.clock = clock.NewFakeClock(now)

	repoInfo := types.RepositoryInfo{URL: "https://github.com/acme/demo", LocalPath: root}
	result, err := builder.PrepareProjectContext(context.Background(), repoInfo, pythonProfile(), nil)
	require.NoError(t, err)

	assert.True(t, now.Equal(result.AnalysisTimestamp))
	assert.Equal(t, repoInfo, result.RepositoryInfo)
	assert.Equal(t, filepath.Base(root), result.ProjectMetadata.Name)

	require.Len(t, result.Files, 3)
	mainFile, ok := fileByPath(result.Files, "main.py")
	require.True(t, ok)
	assert.Equal(t, "Python", mainFile.Language)
	assert.Equal(t, 3, mainFile.Lines)
	assert.False(t, mainFile.IsTestFile)

	readme, ok := fileByPath(result.Files, "README.md")
	require.True(t, ok)
	assert.Equal(t, "Markdown", readme.Language)

	config, ok := fileByPath(result.Files, "src/app/config.yaml")
	require.True(t, ok)
	assert.Equal(t, "YAML", config.Language)
	assert.True(t, config.IsConfigFile)

	_, ok = fileByPath(result.Files, "tests/test_main.py")
	assert.False(t, ok)

	prep := result.PreparationConfig
	assert.Equal(t, "full", prep["analysis_scope"])
	assert.Equal(t, 3, prep["total_files_analyzed"])
	assert.Equal(t, false, prep["include_test_files"])
	assert.Equal(t, 1.0, prep["max_file_size_mb"])
}

func TestPrepareProjectContext_IncludeTestsAndExtra(t *testing.T) {
	root := contextFixture(t)
	cfg := DefaultAnalyzerConfig()
	cfg.IncludeTestFiles = true

	builder := NewContextBuilder(cfg, nil)
	extra := map[string]interface{}{"scope": "security", "requested_by": "cli"}
	result, err := builder.PrepareProjectContext(context.Background(), types.RepositoryInfo{LocalPath: root}, pythonProfile(), extra)
	require.NoError(t, err)

	require.Len(t, result.Files, 4)
	testFile, ok := fileByPath(result.Files, "tests/test_main.py")
	require.True(t, ok)
	assert.True(t, testFile.IsTestFile)

	assert.Equal(t, "security", result.PreparationConfig["analysis_scope"])
	assert.Equal(t, "cli", result.PreparationConfig["requested_by"])
}

func TestPrepareProjectContext_SizeLimit(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"small.py": "x = 1\n",
		"large.py": "# padding padding padding padding\n",
	})

	cfg := DefaultAnalyzerConfig()
	cfg.MaxFileSize = 10

	result, err := NewContextBuilder(cfg, nil).PrepareProjectContext(context.Background(), types.RepositoryInfo{LocalPath: root}, pythonProfile(), nil)
	require.NoError(t, err)

	require.Len(t, result.Files, 1)
	assert.Equal(t, "small.py", result.Files[0].RelativePath)
}

func TestPrepareProjectContext_MissingPath(t *testing.T) {
	builder := NewContextBuilder(DefaultAnalyzerConfig(), nil)
	_, err := builder.PrepareProjectContext(context.Background(), types.RepositoryInfo{LocalPath: filepath.Join(t.TempDir(), "gone")}, pythonProfile(), nil)

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestAnalyzeDirectoryStructure(t *testing.T) {
	root := contextFixture(t)

	structure, err := NewContextBuilder(DefaultAnalyzerConfig(), nil).analyzeDirectoryStructure(context.Background(), root)
	require.NoError(t, err)

	// tests, node_modules, src, src/app, assets; node_modules/lib is never seen
	assert.Equal(t, 5, structure.TotalDirectories)
	assert.Equal(t, 6, structure.TotalFiles)
	assert.Equal(t, 2, structure.MaxDepth)
	assert.Equal(t, []string{"app", "assets", "node_modules", "src", "tests"}, structure.CommonDirectories)
	assert.Equal(t, []string{"node_modules"}, structure.IgnoredDirectories)
}

func TestAnalyzeDirectoryStructure_IgnoredNamesAppearInBothLists(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"build/out.o":      "",
		"pkg/dist/x.js":    "",
		"pkg/vendor/y.txt": "",
	})

	structure, err := NewContextBuilder(DefaultAnalyzerConfig(), nil).analyzeDirectoryStructure(context.Background(), root)
	require.NoError(t, err)

	for _, name := range structure.IgnoredDirectories {
		assert.Contains(t, structure.CommonDirectories, name)
	}
	assert.Equal(t, []string{"build", "dist"}, structure.IgnoredDirectories)
}

func TestSaveAndLoadProjectDataContext(t *testing.T) {
	root := contextFixture(t)
	builder := NewContextBuilder(DefaultAnalyzerConfig(), nil)
	builder.clock = clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	original, err := builder.PrepareProjectContext(context.Background(), types.RepositoryInfo{LocalPath: root}, pythonProfile(), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "context.json")
	require.NoError(t, original.SaveToFile(path))

	loaded, err := LoadProjectDataContext(path)
	require.NoError(t, err)

	assert.True(t, original.AnalysisTimestamp.Equal(loaded.AnalysisTimestamp))
	assert.Equal(t, original.ProjectMetadata.Name, loaded.ProjectMetadata.Name)
	assert.Equal(t, len(original.Files), len(loaded.Files))
	assert.Equal(t, original.DirectoryStructure, loaded.DirectoryStructure)

	_, err = LoadProjectDataContext(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestIsTestFileAndIsConfigFile(t *testing.T) {
	assert.True(t, isTestFile("pkg/user_test.go", "user_test.go"))
	assert.True(t, isTestFile(filepath.Join("src", "tests", "helpers.py"), "helpers.py"))
	assert.True(t, isTestFile("web/button.spec.ts", "button.spec.ts"))
	assert.False(t, isTestFile("src/main.go", "main.go"))

	assert.True(t, isConfigFile("Dockerfile"))
	assert.True(t, isConfigFile("app.config.js"))
	assert.True(t, isConfigFile("requirements-dev.txt"))
	assert.False(t, isConfigFile("main.go"))
}
