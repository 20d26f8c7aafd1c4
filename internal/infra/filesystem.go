package infra

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"

	"quizgate/internal/config"
)

// GetWorkDir resolves (and creates if missing) the bot dot directory,
// optionally suffixed with path elements.
func GetWorkDir(path ...string) string {
	parts := append([]string{config.Get().DotPath}, path...)
	workDir, err := homedir.Expand(filepath.Join(parts...))
	if err != nil {
		log.Fatalln(err)
	}
	if err = os.MkdirAll(workDir, os.ModePerm); err != nil {
		log.Fatalln(err)
	}
	return workDir
}

// GetResourcesPath joins path elements relative to the embedded resources
// FS root.
func GetResourcesPath(path ...string) string {
	return filepath.Join(path...)
}
