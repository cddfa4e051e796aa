package folderstorage

// WithTransaction runs fn against storage under a transaction opened if
// needed. The transaction is committed on success and rolled back on any
// error or panic. Storages whose StartTransaction reports false manage their
// own boundaries and are left alone.
func WithTransaction(storage Storage, p *Parameters, write bool, fn func() error) error {
	opened, err := storage.StartTransaction(p, write)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if opened {
				storage.Rollback(p)
			}
			panic(r)
		}
	}()
	if err := fn(); err != nil {
		if opened {
			storage.Rollback(p)
		}
		return err
	}
	if opened {
		if err := storage.CommitTransaction(p); err != nil {
			storage.Rollback(p)
			return err
		}
	}
	return nil
}
