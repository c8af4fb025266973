package storage

import (
	"path/filepath"

	"github.com/sfu-dhil/lockssomatic"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/util/fileutil"
	"github.com/warpfork/go-errcat"
)

// Dump is a JSON export of the reference records from the LOCKSSOMatic
// web application: networks, their boxes, content providers, AUs and
// deposits.
type Dump struct {
	Plns             []*models.Pln             `json:"plns"`
	Boxes            []*models.Box             `json:"boxes"`
	ContentProviders []*models.ContentProvider `json:"content_providers"`
	Aus              []*models.Au              `json:"aus"`
	Deposits         []*models.Deposit         `json:"deposits"`
}

// LoadDump reads a Dump from the JSON file at path. A relative path
// is relative to the working directory.
func LoadDump(path string) (*Dump, error) {
	dump := &Dump{}
	expanded, err := fileutil.ExpandTilde(path)
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrConfig, "Cannot find dump file '%s': %v", path, err)
	}
	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrConfig, "Cannot find dump file '%s': %v", path, err)
	}
	if err := fileutil.JsonFileToObject(absPath, dump); err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrConfig, "Cannot read dump file '%s': %v", path, err)
	}
	return dump, nil
}

// Import saves every record in dump, parents before children.
// Records keep their ids, so importing the same dump twice
// updates rather than duplicates.
func Import(importer Importer, dump *Dump) error {
	for _, pln := range dump.Plns {
		if err := importer.SavePln(pln); err != nil {
			return err
		}
	}
	for _, box := range dump.Boxes {
		if err := importer.SaveBox(box); err != nil {
			return err
		}
	}
	for _, provider := range dump.ContentProviders {
		if err := importer.SaveContentProvider(provider); err != nil {
			return err
		}
	}
	for _, au := range dump.Aus {
		if err := importer.SaveAu(au); err != nil {
			return err
		}
	}
	for _, deposit := range dump.Deposits {
		if err := importer.SaveDeposit(deposit); err != nil {
			return err
		}
	}
	return nil
}
