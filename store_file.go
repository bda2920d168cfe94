package filebridge

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppipada/filebridge-go/encdec"
	"github.com/ppipada/filebridge-go/internal/maputil"
)

const maxSetAllRetries = 3

// VariableFileStore keeps persistent variables in one JSON file.
// Top level keys of the document are bare variable names. It is safe for concurrent use.
type VariableFileStore struct {
	filename    string
	data        map[string]any
	defaultData map[string]any
	mu          sync.RWMutex

	// Snapshot for optimistic CAS (nil = unknown).
	lastStat           os.FileInfo
	fileEncoderDecoder encdec.EncoderDecoder
	codec              *encdec.PayloadCodec
	autoFlush          bool
	createIfNotExists  bool

	getValueFormat ValueFormatGetter
	listeners      []FileListener
}

// FileOption defines a function type that applies a configuration option to the VariableFileStore.
type FileOption func(*VariableFileStore)

// WithFileEncoderDecoder sets the codec for the whole file. Defaults to indented JSON.
func WithFileEncoderDecoder(encoder encdec.EncoderDecoder) FileOption {
	return func(store *VariableFileStore) {
		store.fileEncoderDecoder = encoder
	}
}

// WithPayloadCodec sets the codec used for variables stored in base64 format.
func WithPayloadCodec(codec *encdec.PayloadCodec) FileOption {
	return func(store *VariableFileStore) {
		store.codec = codec
	}
}

// WithFileAutoFlush sets the AutoFlush option.
func WithFileAutoFlush(autoFlush bool) FileOption {
	return func(store *VariableFileStore) {
		store.autoFlush = autoFlush
	}
}

// WithValueFormatGetter decides per variable how its value is written to disk.
func WithValueFormatGetter(getter ValueFormatGetter) FileOption {
	return func(store *VariableFileStore) {
		store.getValueFormat = getter
	}
}

// WithCreateIfNotExists sets the option to create the file if it does not exist.
func WithCreateIfNotExists(createIfNotExists bool) FileOption {
	return func(store *VariableFileStore) {
		store.createIfNotExists = createIfNotExists
	}
}

// WithFileListeners registers one or more listeners during store creation.
func WithFileListeners(ls ...FileListener) FileOption {
	return func(s *VariableFileStore) { s.listeners = append(s.listeners, ls...) }
}

// NewVariableFileStore opens the store backed by filename.
// If the file does not exist and createIfNotExists is false, it returns an error.
func NewVariableFileStore(
	filename string,
	defaultData map[string]any,
	opts ...FileOption,
) (*VariableFileStore, error) {
	store := &VariableFileStore{
		data:               make(map[string]any),
		defaultData:        defaultData,
		filename:           filepath.Clean(filename),
		autoFlush:          true,
		fileEncoderDecoder: encdec.JSONEncoderDecoder{},
		codec:              encdec.Default,
	}

	for _, opt := range opts {
		opt(store)
	}
	if store.fileEncoderDecoder == nil {
		return nil, errors.New("invalid file encoder decoder")
	}
	if store.codec == nil {
		return nil, errors.New("invalid payload codec")
	}

	if err := store.createFileIfNotExists(); err != nil {
		return nil, err
	}

	if err := store.load(); err != nil {
		return nil, err
	}

	return store, nil
}

// Path returns the cleaned path of the backing file.
func (store *VariableFileStore) Path() string {
	return store.filename
}

// Flush writes the current data to the file. No event is emitted for flush.
func (store *VariableFileStore) Flush() error {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.flushUnlocked()
}

// Reset replaces all variables with the default data.
func (store *VariableFileStore) Reset() error {
	copyAfter, err := store.reset()
	if err != nil {
		return err
	}
	store.fireEvent(FileEvent{
		Op:        OpResetFile,
		File:      store.filename,
		Data:      copyAfter,
		Timestamp: time.Now(),
	})
	return nil
}

// GetAll returns a copy of all variables, reloading from the file first if forceFetch is set and the file changed.
func (store *VariableFileStore) GetAll(forceFetch bool) (map[string]any, error) {
	if forceFetch {
		stat, err := os.Stat(store.filename)
		if err != nil {
			return nil, fmt.Errorf("failed to stat file: %w", err)
		}
		store.mu.RLock()
		same := isSameFileInfo(stat, store.lastStat)
		store.mu.RUnlock()
		if !same {
			if err := store.load(); err != nil {
				return nil, fmt.Errorf("failed to reload file: %w", err)
			}
		}
	}
	store.mu.RLock()
	defer store.mu.RUnlock()

	dataCopy, _ := maputil.DeepCopyValue(store.data).(map[string]any)
	return dataCopy, nil
}

// Names returns the variable names in sorted order.
func (store *VariableFileStore) Names() []string {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return slices.Sorted(maps.Keys(store.data))
}

// SetAll overwrites all variables.
// It retries automatically if another writer wins the race and flushUnlocked returns ErrFileConflict.
func (store *VariableFileStore) SetAll(data map[string]any) error {
	if data == nil {
		return errors.New("SetAll: nil data")
	}

	var (
		copyAfter map[string]any
		err       error
	)

	for range maxSetAllRetries {
		copyAfter, err = store.setAll(data)
		if err == nil {
			store.fireEvent(FileEvent{
				Op:        OpSetFile,
				File:      store.filename,
				Data:      copyAfter,
				Timestamp: time.Now(),
			})
			return nil
		}

		// Any error that isn't ErrFileConflict is fatal.
		if !errors.Is(err, ErrFileConflict) {
			return err
		}

		// ErrFileConflict - reload latest on-disk state so that store.lastStat is refreshed, then retry.
		if loadErr := store.load(); loadErr != nil {
			return fmt.Errorf("SetAll conflict reload failed: %w", loadErr)
		}
	}

	return fmt.Errorf("SetAll: %w after %d retries", ErrFileConflict, maxSetAllRetries)
}

// Get returns a copy of the named variable.
func (store *VariableFileStore) Get(name string) (any, bool, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	val, ok := store.data[name]
	if !ok {
		return nil, false, nil
	}
	return maputil.DeepCopyValue(val), true, nil
}

// Set stores value under name and, with auto flush, writes the file.
// On a failed flush the in-memory value is rolled back so memory and disk agree.
func (store *VariableFileStore) Set(name string, value any) error {
	oldVal, copyAfter, err := store.set(name, value)
	if err != nil {
		return err
	}
	store.fireEvent(FileEvent{
		Op:        OpSetVar,
		File:      store.filename,
		Name:      name,
		OldValue:  maputil.DeepCopyValue(oldVal),
		NewValue:  maputil.DeepCopyValue(value),
		Data:      copyAfter,
		Timestamp: time.Now(),
	})
	return nil
}

// Delete removes the named variable. Deleting a missing variable is a noop without event.
func (store *VariableFileStore) Delete(name string) error {
	oldVal, existed, copyAfter, err := store.deleteVar(name)
	if err != nil || !existed {
		return err
	}
	store.fireEvent(FileEvent{
		Op:        OpDeleteVar,
		File:      store.filename,
		Name:      name,
		OldValue:  maputil.DeepCopyValue(oldVal),
		Data:      copyAfter,
		Timestamp: time.Now(),
	})
	return nil
}

// DeleteFile removes the backing file, emits an OpDeleteFile event and clears lastStat.
// Returns ErrFileConflict if the file changed since we last observed it.
func (store *VariableFileStore) DeleteFile() error {
	if err := store.deleteFile(); err != nil {
		return err
	}
	store.fireEvent(FileEvent{
		Op:        OpDeleteFile,
		File:      store.filename,
		Timestamp: time.Now(),
	})
	return nil
}

func (store *VariableFileStore) deleteFile() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.lastStat != nil {
		if cur, err := os.Stat(store.filename); err == nil {
			if !isSameFileInfo(cur, store.lastStat) {
				return ErrFileConflict
			}
		} else if !os.IsNotExist(err) {
			return err
		}
	}

	if err := os.Remove(store.filename); err != nil && !os.IsNotExist(err) {
		return err
	}

	store.lastStat = nil
	store.data = make(map[string]any)
	return nil
}

func (store *VariableFileStore) Close() error {
	// Should not flush here as file may be deleted.
	return nil
}

func (store *VariableFileStore) setAll(data map[string]any) (copyAfter map[string]any, err error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	prev := store.data
	store.data, _ = maputil.DeepCopyValue(data).(map[string]any)
	copyAfter, _ = maputil.DeepCopyValue(store.data).(map[string]any)

	if store.autoFlush {
		if err = store.flushUnlocked(); err != nil {
			store.data = prev
			return nil, fmt.Errorf("failed to save data after SetAll: %w", err)
		}
	}
	return copyAfter, nil
}

func (store *VariableFileStore) reset() (copyAfter map[string]any, err error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.data, _ = maputil.DeepCopyValue(store.defaultData).(map[string]any)
	if store.data == nil {
		store.data = make(map[string]any)
	}
	copyAfter, _ = maputil.DeepCopyValue(store.data).(map[string]any)

	if err = store.flushUnlocked(); err != nil {
		return nil, fmt.Errorf("failed to save data after Reset: %w", err)
	}
	return copyAfter, nil
}

func (store *VariableFileStore) set(
	name string,
	value any,
) (oldVal any, copyAfter map[string]any, err error) {
	if name == "" {
		return nil, nil, errors.New("cannot set variable with empty name")
	}
	store.mu.Lock()
	defer store.mu.Unlock()

	oldVal, hadOld := store.data[name]
	store.data[name] = maputil.DeepCopyValue(value)
	copyAfter, _ = maputil.DeepCopyValue(store.data).(map[string]any)
	if store.autoFlush {
		if err := store.flushUnlocked(); err != nil {
			if hadOld {
				store.data[name] = oldVal
			} else {
				delete(store.data, name)
			}
			return nil, nil, fmt.Errorf("failed to save data after Set for %q: %w", name, err)
		}
	}
	return oldVal, copyAfter, nil
}

func (store *VariableFileStore) deleteVar(
	name string,
) (oldVal any, existed bool, copyAfter map[string]any, err error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	oldVal, existed = store.data[name]
	if !existed {
		return nil, false, nil, nil
	}
	delete(store.data, name)
	copyAfter, _ = maputil.DeepCopyValue(store.data).(map[string]any)

	if store.autoFlush {
		if err := store.flushUnlocked(); err != nil {
			store.data[name] = oldVal
			return nil, false, nil, fmt.Errorf("failed to save data after Delete for %q: %w", name, err)
		}
	}
	return oldVal, true, copyAfter, nil
}

// createFileIfNotExists checks if the file exists and creates it with the default data if it doesn't.
func (store *VariableFileStore) createFileIfNotExists() error {
	filename := store.filename
	if _, err := os.Stat(filename); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat file %s: %w", filename, err)
	}

	if !store.createIfNotExists {
		return fmt.Errorf("file %s does not exist", filename)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o770); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filename, err)
	}

	// Try to create the file atomically.
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
	if err != nil {
		if os.IsExist(err) {
			// Someone else created it first, nothing to do.
			return nil
		}
		return fmt.Errorf("failed to create file %s: %w", filename, err)
	}
	// We just wanted to create the file, not write to it directly.
	f.Close()

	store.data, _ = maputil.DeepCopyValue(store.defaultData).(map[string]any)
	if store.data == nil {
		store.data = make(map[string]any)
	}

	if err := store.flushUnlocked(); err != nil {
		return fmt.Errorf("failed to flush file %s: %w", filename, err)
	}

	return nil
}

// load the data from the file into the in-memory store, decoding variables kept in base64 form.
func (store *VariableFileStore) load() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	f, err := os.Open(store.filename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", store.filename, err)
	}
	defer f.Close()

	onDisk := make(map[string]any)
	if err := store.fileEncoderDecoder.Decode(f, &onDisk); err != nil {
		return fmt.Errorf("failed to decode data from file %s: %w", store.filename, err)
	}
	if onDisk == nil {
		// A file holding JSON null.
		onDisk = make(map[string]any)
	}

	for name, v := range onDisk {
		if store.valueFormat(name) != encdec.FormatBase64 {
			continue
		}
		s, ok := v.(string)
		if !ok {
			// Written before the variable was switched to base64, keep as is.
			continue
		}
		decoded, err := store.codec.DecodeAs(s, encdec.FormatBase64)
		if err != nil {
			// A plain string written before the switch. It is kept as text and compressed on the next flush.
			slog.Warn("variable is not compressed base64, keeping it as text",
				"file", store.filename, "name", name, "err", err)
			continue
		}
		onDisk[name] = decoded
	}
	store.data = onDisk

	return store.rememberStat()
}

func (store *VariableFileStore) flushUnlocked() error {
	// Encode into a copy so in-memory values stay decoded.
	dataCopy := make(map[string]any, len(store.data))
	for name, v := range store.data {
		if store.valueFormat(name) == encdec.FormatBase64 {
			s, err := store.codec.Encode(v, encdec.FormatBase64)
			if err != nil {
				return fmt.Errorf("failed encoding variable %q: %w", name, err)
			}
			dataCopy[name] = s
			continue
		}
		dataCopy[name] = v
	}

	if store.lastStat != nil {
		// Optimistic CAS check.
		if cur, err := os.Stat(store.filename); err == nil {
			if !isSameFileInfo(cur, store.lastStat) {
				return ErrFileConflict
			}
			f, permErr := os.OpenFile(store.filename, os.O_WRONLY, 0)
			if permErr != nil {
				return permErr
			}
			f.Close()
		} else if !os.IsNotExist(err) {
			return err
		} else {
			// File vanished, treat as conflict.
			return ErrFileConflict
		}
	}

	if err := os.MkdirAll(filepath.Dir(store.filename), 0o770); err != nil {
		return fmt.Errorf(
			"failed to ensure directory for file %s for flush: %w",
			store.filename,
			err,
		)
	}
	tmpName := tempName(store.filename)
	tmpFile, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("failed to open file %s for flush: %w", store.filename, err)
	}
	if err := store.fileEncoderDecoder.Encode(tmpFile, dataCopy); err != nil {
		tmpFile.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode data to file %s: %w", store.filename, err)
	}
	tmpFile.Close()
	if store.lastStat != nil {
		_ = os.Chmod(tmpName, store.lastStat.Mode().Perm())
	}

	if err := os.Rename(tmpName, store.filename); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return store.rememberStat()
}

func (store *VariableFileStore) valueFormat(name string) encdec.Format {
	if store.getValueFormat == nil {
		return encdec.FormatJSON
	}
	return store.getValueFormat(name)
}

func (store *VariableFileStore) rememberStat() error {
	st, err := os.Stat(store.filename)
	if err != nil {
		// Caller decides whether ENOENT is fatal.
		return err
	}
	store.lastStat = st
	return nil
}

// fireEvent delivers e to all listeners, recovering from panics so that a faulty
// observer cannot crash the store.
func (store *VariableFileStore) fireEvent(e FileEvent) {
	for _, l := range store.listeners {
		if l == nil {
			continue
		}
		func(cb FileListener) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error(
						"variable file store listener panic",
						"err",
						r,
						"op",
						e.Op,
						"name",
						e.Name,
						"stack",
						string(debug.Stack()),
					)
				}
			}()
			cb(e)
		}(l)
	}
}

// tempName returns a sibling path for atomic writes.
func tempName(filename string) string {
	if id, err := uuid.NewV7(); err == nil {
		return fmt.Sprintf("%s.tmp-%s", filename, id)
	}
	return fmt.Sprintf("%s.tmp-%d", filename, time.Now().UnixNano())
}

// isSameFileInfo compares inode+device, size and ModTime.
func isSameFileInfo(a, b os.FileInfo) bool {
	return a != nil && b != nil &&
		os.SameFile(a, b) &&
		a.Size() == b.Size() && a.ModTime().Equal(b.ModTime())
}
