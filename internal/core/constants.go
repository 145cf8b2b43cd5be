package core

/*
rdapwatch — domain expiration checks over RDAP, driven from chat
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import "time"

const (
	// DefaultLookupInterval is the pause kept between consecutive RDAP
	// lookups within one check.
	DefaultLookupInterval = 1 * time.Second

	// DefaultWorkers is the number of scheduler workers handling commands.
	// Commands from one chat always land on the same worker.
	DefaultWorkers = 4

	// MaxWorkers caps the worker count regardless of configuration.
	MaxWorkers = 64

	// DefaultQueueCapacity is the per-worker queue depth. A check can hold a
	// worker for minutes, so this bounds how much work piles up behind it.
	DefaultQueueCapacity = 32
)
