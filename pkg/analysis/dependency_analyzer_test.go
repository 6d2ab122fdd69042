package analysis

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMetadata_Python(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pyproject.toml": `[project]
name = "demo"
version = "1.2.0"
description = "Demo service"
keywords = ["review", "scan"]
authors = [{name = "Ada", email = "ada@example.com"}, {name = "Lin"}]
license = {text = "MIT"}
dependencies = ["requests>=2"]
`,
		"requirements.txt": "# pinned\nflask==2.0\n\nnumpy\n",
	})

	metadata := NewDependencyAnalyzer(nil).ExtractMetadata(root, "Python")

	assert.Equal(t, "demo", metadata.Name)
	require.NotNil(t, metadata.Version)
	assert.Equal(t, "1.2.0", *metadata.Version)
	require.NotNil(t, metadata.Author)
	assert.Equal(t, "Ada <ada@example.com>, Lin", *metadata.Author)
	require.NotNil(t, metadata.License)
	assert.Equal(t, "MIT", *metadata.License)
	assert.Equal(t, []string{"review", "scan"}, metadata.Keywords)
	assert.Equal(t, []string{"requests>=2"}, metadata.Dependencies["runtime"])
	assert.Equal(t, []string{"flask==2.0", "numpy"}, metadata.Dependencies["requirements"])
}

func TestExtractMetadata_PackageJSON(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"package.json": `{
  "name": "web-app",
  "version": "0.3.0",
  "author": {"name": "Sam", "email": "sam@example.com"},
  "license": "Apache-2.0",
  "dependencies": {"vue": "^3", "axios": "^1"},
  "devDependencies": {"vite": "^5"},
  "scripts": {"build": "vite build"}
}`,
	})

	metadata := NewDependencyAnalyzer(nil).ExtractMetadata(root, "TypeScript")

	assert.Equal(t, "web-app", metadata.Name)
	require.NotNil(t, metadata.Author)
	assert.Equal(t, "Sam <sam@example.com>", *metadata.Author)
	assert.Nil(t, metadata.Description)
	assert.Equal(t, []string{"axios", "vue"}, metadata.Dependencies["dependencies"])
	assert.Equal(t, []string{"vite"}, metadata.Dependencies["devDependencies"])
	assert.Equal(t, map[string]string{"build": "vite build"}, metadata.Scripts)
}

func TestExtractMetadata_MalformedManifestKeepsDefaults(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"package.json": "{not json"})

	metadata := NewDependencyAnalyzer(nil).ExtractMetadata(root, "JavaScript")

	assert.Equal(t, filepath.Base(root), metadata.Name)
	assert.Nil(t, metadata.Version)
	assert.Empty(t, metadata.Dependencies)
}

func TestExtractMetadata_Maven(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pom.xml": `<?xml version="1.0"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <parent><artifactId>parent-pom</artifactId></parent>
  <artifactId>billing</artifactId>
  <version>2.1.0</version>
  <description> Billing service </description>
  <dependencies>
    <dependency><groupId>org.slf4j</groupId><artifactId>slf4j-api</artifactId></dependency>
    <dependency><artifactId>orphan</artifactId></dependency>
  </dependencies>
</project>`,
		"build.gradle": "dependencies {\n    implementation 'com.google.guava:guava:33.0.0-jre'\n}\n",
	})

	metadata := NewDependencyAnalyzer(nil).ExtractMetadata(root, "Java")

	assert.Equal(t, "billing", metadata.Name)
	require.NotNil(t, metadata.Version)
	assert.Equal(t, "2.1.0", *metadata.Version)
	require.NotNil(t, metadata.Description)
	assert.Equal(t, "Billing service", *metadata.Description)
	assert.Equal(t, []string{"org.slf4j:slf4j-api"}, metadata.Dependencies["maven"])
	assert.Equal(t, []string{"com.google.guava:guava:33.0.0-jre"}, metadata.Dependencies["gradle"])
}

func TestExtractMetadata_MavenLatin1(t *testing.T) {
	root := t.TempDir()
	pom := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<project>\n" +
		"  <artifactId>caf\xe9</artifactId>\n" +
		"  <version>1.0</version>\n" +
		"  <description>R\xe9sum\xe9 builder</description>\n" +
		"</project>\n"
	writeTree(t, root, map[string]string{"pom.xml": pom})

	metadata := NewDependencyAnalyzer(nil).ExtractMetadata(root, "Java")

	assert.Equal(t, "café", metadata.Name)
	require.NotNil(t, metadata.Version)
	assert.Equal(t, "1.0", *metadata.Version)
	require.NotNil(t, metadata.Description)
	assert.Equal(t, "Résumé builder", *metadata.Description)
}

func TestExtractMetadata_GradleOnly(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"build.gradle": "version = '0.9.1'\ndescription \"Android client\"\n",
	})

	metadata := NewDependencyAnalyzer(nil).ExtractMetadata(root, "java")

	require.NotNil(t, metadata.Version)
	assert.Equal(t, "0.9.1", *metadata.Version)
	require.NotNil(t, metadata.Description)
	assert.Equal(t, "Android client", *metadata.Description)
	assert.NotContains(t, metadata.Dependencies, "gradle")
}

func TestExtractMetadata_Pubspec(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pubspec.yaml": `name: mobile_app
version: 1.0.0+1
description: A Flutter app
dependencies:
  flutter:
    sdk: flutter
  http: ^1.1.0
dev_dependencies:
  flutter_test:
    sdk: flutter
`,
	})

	metadata := NewDependencyAnalyzer(nil).ExtractMetadata(root, "Dart")

	assert.Equal(t, "mobile_app", metadata.Name)
	require.NotNil(t, metadata.Version)
	assert.Equal(t, "1.0.0+1", *metadata.Version)
	assert.Nil(t, metadata.Author)
	assert.Equal(t, []string{"flutter", "http"}, metadata.Dependencies["dependencies"])
	assert.Equal(t, []string{"flutter_test"}, metadata.Dependencies["dev_dependencies"])
}

func TestExtractMetadata_GoMod(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"go.mod": `module example.com/scanner

go 1.22

require (
	github.com/spf13/cobra v1.9.1
	golang.org/x/sys v0.30.0 // indirect
)
`,
	})

	metadata := NewDependencyAnalyzer(nil).ExtractMetadata(root, "Go")

	assert.Equal(t, "example.com/scanner", metadata.Name)
	assert.Equal(t, []string{"github.com/spf13/cobra@v1.9.1"}, metadata.Dependencies["require"])
	assert.Equal(t, []string{"golang.org/x/sys@v0.30.0"}, metadata.Dependencies["indirect"])
}

func TestExtractMetadata_Cargo(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Cargo.toml": `[package]
name = "fastlog"
version = "0.4.2"
authors = ["Kim <kim@example.com>"]
license = "MIT OR Apache-2.0"

[dependencies]
serde = { version = "1", features = ["derive"] }
tokio = "1"

[dev-dependencies]
criterion = "0.5"
`,
	})

	metadata := NewDependencyAnalyzer(nil).ExtractMetadata(root, "Rust")

	assert.Equal(t, "fastlog", metadata.Name)
	require.NotNil(t, metadata.License)
	assert.Equal(t, "MIT OR Apache-2.0", *metadata.License)
	require.NotNil(t, metadata.Author)
	assert.Equal(t, "Kim <kim@example.com>", *metadata.Author)
	assert.Equal(t, []string{"serde", "tokio"}, metadata.Dependencies["dependencies"])
	assert.Equal(t, []string{"criterion"}, metadata.Dependencies["dev-dependencies"])
}

func TestExtractMetadata_UnknownLanguage(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"package.json": `{"name": "ignored"}`})

	metadata := NewDependencyAnalyzer(nil).ExtractMetadata(root, "Unknown")

	assert.Equal(t, filepath.Base(root), metadata.Name)
	assert.NotNil(t, metadata.Dependencies)
	assert.Empty(t, metadata.Dependencies)
	assert.Nil(t, metadata.Version)
	assert.Nil(t, metadata.Keywords)
}
