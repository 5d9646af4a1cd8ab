package database

import (
	"fmt"
)

var _ FolderRepository = (*FolderRepositoryImpl)(nil)

// FolderRepositoryImpl handles database operations for folders
type FolderRepositoryImpl struct {
	db *DB
}

func NewFolderRepository(db *DB) *FolderRepositoryImpl {
	return &FolderRepositoryImpl{db: db}
}

func (r *FolderRepositoryImpl) GetAll() ([]Folder, error) {
	rows, err := r.db.Query(`
		SELECT id, name, external_id, created_at, updated_at
		FROM folders
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		var folder Folder
		if err := rows.Scan(&folder.ID, &folder.Name, &folder.ExternalID,
			&folder.CreatedAt, &folder.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder row: %w", err)
		}
		folders = append(folders, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folder rows: %w", err)
	}

	return folders, nil
}

func (r *FolderRepositoryImpl) Insert(folder *Folder) error {
	_, err := r.db.Exec(`
		INSERT INTO folders (id, name, external_id)
		VALUES (?, ?, ?)
	`, folder.ID, folder.Name, folder.ExternalID)

	if err != nil {
		return fmt.Errorf("failed to insert folder: %w", err)
	}

	return nil
}

func (r *FolderRepositoryImpl) Update(folder *Folder) error {
	_, err := r.db.Exec(`
		UPDATE folders
		SET name = ?, external_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, folder.Name, folder.ExternalID, folder.ID)

	if err != nil {
		return fmt.Errorf("failed to update folder: %w", err)
	}

	return nil
}

func (r *FolderRepositoryImpl) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	return nil
}
