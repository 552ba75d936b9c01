// Package directory keeps the institution and employee directory in bbolt.
package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned when an institution or employee does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrExists is returned when a name is already taken.
	ErrExists = errors.New("record already exists")

	// ErrInvalid is returned for missing names or ids.
	ErrInvalid = errors.New("invalid input")
)

const bucketInstitutions = "institutions"

// Employee is a borrower registered under an institution, keyed by national id.
type Employee struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	AccountNo string              `json:"accountNo"`
	Capital   decimal.NullDecimal `json:"capital"`
	Interest  decimal.NullDecimal `json:"interest"`
}

// EmployeePatch carries the fields of an edit. Nil fields keep their value.
type EmployeePatch struct {
	Name      *string              `json:"name,omitempty"`
	AccountNo *string              `json:"accountNo,omitempty"`
	Capital   *decimal.NullDecimal `json:"capital,omitempty"`
	Interest  *decimal.NullDecimal `json:"interest,omitempty"`
}

// Institution groups employees.
type Institution struct {
	Name      string     `json:"institution_name"`
	Employees []Employee `json:"employees"`
}

// Store wraps the bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the directory database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory database folder: %w", err)
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketInstitutions)); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketInstitutions, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListInstitutions returns every institution sorted by name.
func (s *Store) ListInstitutions() ([]Institution, error) {
	institutions := []Institution{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketInstitutions)).ForEach(func(_, v []byte) error {
			var inst Institution
			if err := json.Unmarshal(v, &inst); err != nil {
				return fmt.Errorf("failed to unmarshal institution: %w", err)
			}
			institutions = append(institutions, inst)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(institutions, func(i, j int) bool { return institutions[i].Name < institutions[j].Name })
	return institutions, nil
}

// GetInstitution returns one institution.
func (s *Store) GetInstitution(name string) (*Institution, error) {
	var inst *Institution
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		inst, err = get(tx, name)
		return err
	})
	return inst, err
}

// AddInstitution registers an institution without employees.
func (s *Store) AddInstitution(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: institution name is required", ErrInvalid)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketInstitutions))
		if b.Get([]byte(name)) != nil {
			return fmt.Errorf("%w: institution %q", ErrExists, name)
		}
		return put(tx, &Institution{Name: name, Employees: []Employee{}})
	})
}

// RenameInstitution moves an institution to a new name. Renaming onto an
// existing institution fails with ErrExists.
func (s *Store) RenameInstitution(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if oldName == "" || newName == "" {
		return fmt.Errorf("%w: both old and new institution names are required", ErrInvalid)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		inst, err := get(tx, oldName)
		if err != nil {
			return err
		}
		if newName == oldName {
			return nil
		}
		b := tx.Bucket([]byte(bucketInstitutions))
		if b.Get([]byte(newName)) != nil {
			return fmt.Errorf("%w: institution %q", ErrExists, newName)
		}
		if err := b.Delete([]byte(oldName)); err != nil {
			return err
		}
		inst.Name = newName
		return put(tx, inst)
	})
}

// DeleteInstitution removes an institution and its employees.
func (s *Store) DeleteInstitution(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := get(tx, name); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketInstitutions)).Delete([]byte(name))
	})
}

// AddEmployees adds employees keyed by national id. An id that is already
// registered is replaced.
func (s *Store) AddEmployees(institution string, employees map[string]Employee) error {
	if institution == "" || len(employees) == 0 {
		return fmt.Errorf("%w: institution name and employees are required", ErrInvalid)
	}
	ids := make([]string, 0, len(employees))
	for id := range employees {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: employee id is required", ErrInvalid)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return s.db.Update(func(tx *bolt.Tx) error {
		inst, err := get(tx, institution)
		if err != nil {
			return err
		}
		for _, id := range ids {
			e := employees[id]
			e.ID = id
			if i := inst.indexOf(id); i >= 0 {
				inst.Employees[i] = e
			} else {
				inst.Employees = append(inst.Employees, e)
			}
		}
		return put(tx, inst)
	})
}

// UpdateEmployee applies patch to one employee, keeping its id.
func (s *Store) UpdateEmployee(institution, id string, patch EmployeePatch) (*Employee, error) {
	var updated Employee
	err := s.db.Update(func(tx *bolt.Tx) error {
		inst, err := get(tx, institution)
		if err != nil {
			return err
		}
		i := inst.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: employee %q", ErrNotFound, id)
		}
		e := &inst.Employees[i]
		if patch.Name != nil {
			e.Name = *patch.Name
		}
		if patch.AccountNo != nil {
			e.AccountNo = *patch.AccountNo
		}
		if patch.Capital != nil {
			e.Capital = *patch.Capital
		}
		if patch.Interest != nil {
			e.Interest = *patch.Interest
		}
		updated = *e
		return put(tx, inst)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteEmployee removes one employee.
func (s *Store) DeleteEmployee(institution, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		inst, err := get(tx, institution)
		if err != nil {
			return err
		}
		i := inst.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: employee %q", ErrNotFound, id)
		}
		inst.Employees = append(inst.Employees[:i], inst.Employees[i+1:]...)
		return put(tx, inst)
	})
}

func (inst *Institution) indexOf(id string) int {
	for i, e := range inst.Employees {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func get(tx *bolt.Tx, name string) (*Institution, error) {
	data := tx.Bucket([]byte(bucketInstitutions)).Get([]byte(name))
	if data == nil {
		return nil, fmt.Errorf("%w: institution %q", ErrNotFound, name)
	}
	var inst Institution
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal institution: %w", err)
	}
	if inst.Employees == nil {
		inst.Employees = []Employee{}
	}
	return &inst, nil
}

func put(tx *bolt.Tx, inst *Institution) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return tx.Bucket([]byte(bucketInstitutions)).Put([]byte(inst.Name), data)
}
