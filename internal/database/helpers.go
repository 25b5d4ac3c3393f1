package database

import "database/sql"

// requireRowAffected maps a zero-row exec to missingErr. Queue
// transitions and source health updates target one row by primary key,
// so touching nothing means the job or source no longer exists.
func requireRowAffected(result sql.Result, err, missingErr error) error {
	if err != nil {
		return err
	}
	affected, raErr := result.RowsAffected()
	if raErr != nil {
		return raErr
	}
	if affected == 0 {
		return missingErr
	}
	return nil
}
