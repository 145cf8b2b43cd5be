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

package bot

import (
	"context"
	"fmt"
	"io"
)

// WriterReplier prints replies to w, one per line. The CLI uses it to run
// commands without a chat.
type WriterReplier struct {
	w io.Writer
}

func NewWriterReplier(w io.Writer) *WriterReplier {
	return &WriterReplier{w: w}
}

func (p *WriterReplier) Reply(_ context.Context, text string) error {
	_, err := fmt.Fprintln(p.w, text)
	return err
}
