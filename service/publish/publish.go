// Package publish archives a finished project and uploads it with its
// utilisation report.
package publish

import (
	"archive/zip"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/ReconfigureIO/hlsflow/converter"
	"github.com/ReconfigureIO/hlsflow/models"
	"github.com/ReconfigureIO/hlsflow/service/storage"
	"github.com/abiosoft/errs"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Archive zips every file under dir except the run lock. Paths in the
// archive are relative to dir.
func Archive(dir string, w io.Writer) error {
	zw := zip.NewWriter(w)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if info.IsDir() || rel == converter.LockFile {
			return nil
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(fw, f)
		return err
	})
	if err != nil {
		return err
	}
	return zw.Close()
}

// Artifacts are the published locations of a run.
type Artifacts struct {
	Project string
	Report  string
}

// Publish uploads the zipped project directory and, if reportPath is not
// empty, the utilisation report under the run's keys.
func Publish(s storage.Service, run models.Run, dir, reportPath string) (Artifacts, error) {
	var out Artifacts
	var tmpFile *os.File

	// The archive is staged on disk so the upload can stream it.
	var e errs.Group
	e.Add(func() (err error) {
		tmpFile, err = ioutil.TempFile("", "hlsflow-*.zip")
		return
	})
	e.Defer(func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpFile.Name())
		}
	})
	e.Add(func() error {
		return errors.Wrap(Archive(dir, tmpFile), "archive project")
	})
	e.Add(func() (err error) {
		_, err = tmpFile.Seek(0, io.SeekStart)
		return
	})
	e.Add(func() (err error) {
		out.Project, err = s.Upload(run.ArtifactKey(), tmpFile)
		return errors.Wrap(err, "upload project")
	})
	if reportPath != "" {
		e.Add(func() error {
			f, err := os.Open(reportPath)
			if err != nil {
				return err
			}
			defer f.Close()
			out.Report, err = s.Upload(run.ReportKey(), f)
			return errors.Wrap(err, "upload report")
		})
	}
	if err := e.Exec(); err != nil {
		return Artifacts{}, err
	}

	log.WithFields(log.Fields{
		"run":      run.ID,
		"artifact": out.Project,
		"report":   out.Report,
	}).Info("run published")
	return out, nil
}
