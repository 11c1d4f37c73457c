package einvoice

import "sync"

// keyedLocks serializa las operaciones de ciclo de vida por documento. La
// clave es companyID+"/"+documentID, que por construcción también serializa
// por período (el ID es determinista por período). El mapa no se poda: su
// tamaño está acotado por empresas × períodos activos.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire bloquea la clave y devuelve la función de liberación.
func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
